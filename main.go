package main

import "github.com/jmehdipour/sms-ingest/cmd"

func main() {
	cmd.Execute()
}
