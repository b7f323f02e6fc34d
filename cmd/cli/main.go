package main

import (
	"github.com/exiscale/urlhealth/cmd/cli/alerts"
	"github.com/exiscale/urlhealth/cmd/cli/root"
	"github.com/exiscale/urlhealth/cmd/cli/scan"
	"github.com/exiscale/urlhealth/cmd/cli/schedules"
	"github.com/exiscale/urlhealth/cmd/cli/token"
)

func main() {
	scan.Init(root.RootCmd)
	schedules.Init(root.RootCmd)
	alerts.Init(root.RootCmd)
	token.Init(root.RootCmd)

	root.Execute()
}
