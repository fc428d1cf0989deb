package testutil

import "flag"

// FlagSedarURL points the live tests at a running SEDAR server; they are skipped when it is empty.
var FlagSedarURL = flag.String("testutil.sedar-url", "", "Base URL of a SEDAR server for live tests")

// FlagSedarEmail and FlagSedarPassword are the credentials used by live tests.
var (
	FlagSedarEmail    = flag.String("testutil.sedar-email", "admin", "Login email for live tests")
	FlagSedarPassword = flag.String("testutil.sedar-password", "admin", "Login password for live tests")
)
