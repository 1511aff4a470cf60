package controller

import (
	"log"
	"strings"
	"time"

	"github.com/sweeney/relay-controller/internal/command"
)

// HandleDownlink decodes a downlink, applies its intents and always answers
// with a status uplink, including when decoding fails.
func (c *Controller) HandleDownlink(payload []byte, port uint8, now time.Time) {
	log.Printf("controller: downlink on port %d, %d bytes: % X", port, len(payload), payload)

	c.runPayload(payload, now)

	if err := c.SendStatus(now); err != nil {
		log.Printf("controller: downlink status: %v", err)
	}
}

// runPayload decodes and executes a payload and records the audit trail.
func (c *Controller) runPayload(payload []byte, now time.Time) string {
	format, intents, err := command.Decode(payload)
	if err != nil {
		audit := format.String() + ": " + err.Error()
		log.Printf("controller: decode failed: %s", audit)
		c.setAudit(audit, now)
		return audit
	}

	summary, verr := c.bank.Execute(intents, now)
	if summary == "" {
		summary = "no change"
	}
	audit := format.String() + ": " + summary
	if verr != nil {
		audit += " (" + strings.ReplaceAll(verr.Error(), "\n", "; ") + ")"
	}
	c.setAudit(audit, now)
	return audit
}
