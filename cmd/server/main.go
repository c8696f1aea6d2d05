package main

import "studybuddy/internal/cli"

func main() {
	cli.Execute()
}
