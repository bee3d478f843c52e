package main

import "github.com/grouptask/taskflow/cmd"

func main() {
	cmd.Execute()
}
