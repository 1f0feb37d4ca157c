// Command dashscrape serves and runs dashboard scrapes.
package main

func main() {
	Execute()
}
