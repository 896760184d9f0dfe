package models

// Setting is a named display string mutated only by admin actions.
type Setting struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

const (
	SettingMarqueeText         = "marquee_text"
	SettingSidebarAnnouncement = "sidebar_announcement"
)

const (
	RoleAdmin  = "admin"
	RoleMaster = "master"
	RoleStaff  = "staff"
)
