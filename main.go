package main

import "schls/cmd"

func main() {
	cmd.Execute()
}
