package main

import "github.com/geckyzz/nyaa-comments/cmd"

func main() {
	cmd.Execute()
}
