package main

import "github.com/zenvor/report-writer/cmd"

func main() {
	cmd.Execute()
}
