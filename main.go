// The main package for the jobcrawler executable.
package main

import (
	"github.com/JakeFAU/jobsearch-crawler/cmd"
)

func main() {
	cmd.Execute()
}
