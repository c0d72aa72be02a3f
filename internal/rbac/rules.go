package rbac

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

const (
	PermPassageRead    = "passage:read"
	PermPassageWrite   = "passage:write"
	PermQSetRead       = "qset:read"
	PermQSetWrite      = "qset:write"
	PermGenerate       = "generate:run"
	PermTranscriptRead = "transcript:read"
	PermUsersManage    = "users:manage"
	PermChangePassword = "user:change_password"
)

// Default policy. Everything a teacher touches is owner-scoped by the stores,
// so these only gate which routes a role may call at all.
var RolePermissions = map[string][]string{
	RoleTeacher: {
		"passage:*",
		"qset:*",
		PermGenerate,
		PermTranscriptRead,
		PermChangePassword,
	},
	RoleAdmin: {
		"*", // everything
	},
}
