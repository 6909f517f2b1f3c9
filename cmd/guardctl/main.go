package main

import "github.com/GoPolymarket/guardgate/internal/cli"

func main() {
	cli.Execute()
}
