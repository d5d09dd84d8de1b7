package main

import "ffcalendar/internal/cli"

func main() {
	cli.Execute()
}
