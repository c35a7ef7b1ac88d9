package privileges

import "slices"

// Privilege is an atomic permission token to view or manage data of the system.
// Privileges are granted globally or within a single organization.
type Privilege string

// Available privileges in the system.
const (
	// PrivilegeReadDashboard read the dashboard of the system.
	PrivilegeReadDashboard Privilege = "read_dashboard"

	// PrivilegeReadAccounts read the accounts of the system or organization.
	PrivilegeReadAccounts Privilege = "read_accounts"
	// PrivilegeWriteAccounts manage the accounts of the system or organization.
	PrivilegeWriteAccounts Privilege = "write_accounts"

	// PrivilegeReadRoles read the roles of the system or organization.
	PrivilegeReadRoles Privilege = "read_roles"
	// PrivilegeWriteRoles manage the roles of the system or organization.
	PrivilegeWriteRoles Privilege = "write_roles"

	// PrivilegeReadOrganizations read the organizations of the system.
	PrivilegeReadOrganizations Privilege = "read_organizations"
	// PrivilegeWriteOrganizations manage the organizations of the system.
	PrivilegeWriteOrganizations Privilege = "write_organizations"

	// PrivilegeReadSettings read the settings of the system.
	PrivilegeReadSettings Privilege = "read_settings"
	// PrivilegeWriteSettings manage the settings of the system.
	PrivilegeWriteSettings Privilege = "write_settings"

	// PrivilegeReadReports read the reports of the system or organization.
	PrivilegeReadReports Privilege = "read_reports"
	// PrivilegeWriteReports manage the reports of the system or organization.
	PrivilegeWriteReports Privilege = "write_reports"

	// PrivilegeReadOwnAccount read the account record of the calling principal only.
	PrivilegeReadOwnAccount Privilege = "read_own_account"
	// PrivilegeManageOwnRoles manage the role associations of the calling principal only.
	PrivilegeManageOwnRoles Privilege = "manage_own_roles"

	// PrivilegeReadBackend read backend data for external integration callbacks.
	PrivilegeReadBackend Privilege = "read_backend"
	// PrivilegeManageAccountRoles manage role associations of arbitrary accounts.
	PrivilegeManageAccountRoles Privilege = "manage_account_roles"

	// PrivilegeImpersonate operate as another account's principal.
	PrivilegeImpersonate Privilege = "impersonate"
)

// Level is the scope level a privilege can be granted at.
type Level string

const (
	// LevelGlobal grants the privilege across the entire system.
	LevelGlobal Level = "global"

	// LevelOrganization grants the privilege within a single organization.
	LevelOrganization Level = "organization"
)

// Definition describes one privilege of the catalog.
type Definition struct {
	Slug        Privilege
	Description string
	Levels      []Level
}

// catalog defines all available privileges with their configurations.
var catalog = []Definition{
	{
		Slug:        PrivilegeReadDashboard,
		Description: "View dashboard",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeReadAccounts,
		Description: "View account information",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeWriteAccounts,
		Description: "Manage accounts (create, edit, delete)",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeReadRoles,
		Description: "View role information",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeWriteRoles,
		Description: "Manage roles (create, edit, delete)",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeReadOrganizations,
		Description: "View organization information",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeWriteOrganizations,
		Description: "Manage organizations (create, edit, delete)",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeReadSettings,
		Description: "View system settings",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeWriteSettings,
		Description: "Manage system settings",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeReadReports,
		Description: "View reports",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeWriteReports,
		Description: "Manage reports (create, edit, delete)",
		Levels:      []Level{LevelGlobal, LevelOrganization},
	},
	{
		Slug:        PrivilegeReadOwnAccount,
		Description: "View own account record",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeManageOwnRoles,
		Description: "Manage own role associations",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeReadBackend,
		Description: "Read backend data for integration callbacks",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeManageAccountRoles,
		Description: "Manage role associations of any account",
		Levels:      []Level{LevelGlobal},
	},
	{
		Slug:        PrivilegeImpersonate,
		Description: "Operate as another account",
		Levels:      []Level{LevelGlobal},
	},
}

// All returns all available privileges, optionally filtered by level.
func All(level *Level) []Definition {
	if level == nil {
		return catalog
	}

	filtered := make([]Definition, 0)

	for _, def := range catalog {
		if slices.Contains(def.Levels, *level) {
			filtered = append(filtered, def)
		}
	}

	return filtered
}

// AllAsStrings returns all available privileges as strings.
func AllAsStrings() []string {
	defs := All(nil)

	result := make([]string, len(defs))
	for i, def := range defs {
		result[i] = string(def.Slug)
	}

	return result
}

// AllSet returns the full catalog as a Set.
func AllSet() Set {
	defs := All(nil)

	slugs := make([]Privilege, len(defs))
	for i, def := range defs {
		slugs[i] = def.Slug
	}

	return NewSet(slugs...)
}

// IsValid checks if a privilege is part of the catalog.
func IsValid(privilege Privilege) bool {
	for _, def := range catalog {
		if def.Slug == privilege {
			return true
		}
	}

	return false
}
