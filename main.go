package main

import "github.com/kebairia/dbshield/cmd"

func main() {
	cmd.Execute()
}
