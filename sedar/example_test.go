package sedar_test

import (
	"context"
	"fmt"
	"os"

	"github.com/warptools/sedar/pkg/config"
	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/upload"
	"github.com/warptools/sedar/sdapi"
	"github.com/warptools/sedar/sedar"
)

func Example() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	ctx := logging.NewLogger(os.Stdout, os.Stderr, false, false, false).WithContext(context.Background())

	c, err := sedar.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	defer c.Close(ctx)

	if _, err := c.Login(ctx, "admin", "admin"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	ws, err := c.Workspaces(ctx)
	if err != nil || len(ws) == 0 {
		return
	}

	def, err := c.DefinitionFromFile("sensors.json")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	d, err := ws[0].CreateDataset(ctx, def, upload.Single("sensors.csv"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if _, err := d.Ingest(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	found, err := ws[0].SearchDatasets(ctx, "sensors", sdapi.SearchParams{"limit": "5"}, true)
	if err != nil {
		return
	}
	for _, d := range found {
		fmt.Println(d.ID(), d.Title)
	}
}
