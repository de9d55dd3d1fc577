// Command seatpicker is a terminal client for the ticketing API: it draws
// an event's seat map, keeps it fresh while a seat is chosen and books the
// chosen seat.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Debug(err)
		os.Exit(1)
	}
}
