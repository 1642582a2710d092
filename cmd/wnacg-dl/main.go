package main

import "wnacg-downloader/cmd/wnacg-dl/cmd"

func main() {
	cmd.Execute()
}
