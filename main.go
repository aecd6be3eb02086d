package main

import "github.com/farahad-khurami/ebay-scraper/cmd"

func main() {
	cmd.Execute()
}
