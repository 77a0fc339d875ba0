package main

import (
	"fmt"
	"time"
)

func cmdAudit() {
	resp, err := apiRequest("GET", "/audit", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var entries []struct {
		Action    string    `json:"action"`
		Detail    string    `json:"detail"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := apiResult(resp, &entries); err != nil {
		fatal("%v", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit records.")
		return
	}
	for _, e := range entries {
		line := e.Action
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		fmt.Printf("%s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), line)
	}
}
