package main

import (
	"course-player-backend/cmd"
)

func main() {
	cmd.Execute()
}
