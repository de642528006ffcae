package main

import "github.com/vietddude/imagine/internal/cli"

func main() {
	cli.Execute()
}
