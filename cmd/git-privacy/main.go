package main

import "github.com/gitprivacy/git-privacy/internal/cli"

func main() {
	cli.Execute()
}
