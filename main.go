package main

import "github.com/dmfenton/plotdesk/cmd"

func main() {
	cmd.Execute()
}
