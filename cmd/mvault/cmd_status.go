package main

import "fmt"

func cmdStatus() {
	resp, err := apiRequest("GET", "/vault/status", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var status struct {
		Locked          bool `json:"locked"`
		HasMaster       bool `json:"hasMaster"`
		AutoLockMinutes int  `json:"autoLockMinutes"`
		EntryCount      int  `json:"entryCount"`
	}
	if err := apiResult(resp, &status); err != nil {
		fatal("%v", err)
	}

	if !status.HasMaster {
		fmt.Println("Vault: not initialized (run 'mvault init')")
		return
	}
	if status.Locked {
		fmt.Println("Vault: locked")
		return
	}
	fmt.Printf("Vault: unlocked, %d entries\n", status.EntryCount)
	if status.AutoLockMinutes == 0 {
		fmt.Println("Auto-lock: never")
	} else {
		fmt.Printf("Auto-lock: after %d minutes idle\n", status.AutoLockMinutes)
	}
}
