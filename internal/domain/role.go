package domain

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleManagement    Role = "management"
	RoleHRRecruitment Role = "hr_recruitment"
)

// 权限等级，数字越小权限越高，调用方会直接比较数值
const (
	AccessLevelAdministrator = 1
	AccessLevelManagement    = 2
	AccessLevelHRRecruitment = 3
)

type roleDefaults struct {
	label       string
	accessLevel int
	permissions PermissionSet
}

// 进程启动时初始化一次，之后只读
var roleRegistry = map[Role]roleDefaults{
	RoleAdministrator: {
		label:       "Administrator",
		accessLevel: AccessLevelAdministrator,
		permissions: mustPermissionSet(Permissions()...),
	},
	RoleManagement: {
		label:       "Management",
		accessLevel: AccessLevelManagement,
		permissions: mustPermissionSet(
			PermPostJobs, PermWriteJobDescriptions, PermEditJobs, PermDeleteJobs,
			PermAssignJobs, PermTransferJobs, PermWithdrawJobs,
			PermViewApplications, PermReviewApplications, PermShortlistCandidates,
			PermRejectCandidates, PermScheduleInterviews,
			PermPullAppliedReports, PermPullShortlistedReports, PermPullRejectedReports,
			PermPullFullReports, PermExportReports,
			PermViewAnalytics, PermViewAllJobs, PermMonitorPerformance,
			PermAssignTasks, PermApproveJobs, PermManageTeam,
		),
	},
	RoleHRRecruitment: {
		label:       "HR & Recruitment",
		accessLevel: AccessLevelHRRecruitment,
		permissions: mustPermissionSet(
			PermPostJobs, PermWriteJobDescriptions, PermEditJobs, PermWithdrawJobs,
			PermViewApplications, PermReviewApplications, PermShortlistCandidates,
			PermRejectCandidates, PermScheduleInterviews,
			PermPullAppliedReports, PermPullShortlistedReports, PermPullRejectedReports,
		),
	},
}

var roleOrder = []Role{RoleAdministrator, RoleManagement, RoleHRRecruitment}

func mustPermissionSet(granted ...Permission) PermissionSet {
	s, err := NewPermissionSet(granted...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultsFor 返回的权限集合是副本，修改它不会影响注册表和其他账户
func DefaultsFor(role Role) (int, PermissionSet, error) {
	d, ok := roleRegistry[role]
	if !ok {
		return 0, PermissionSet{}, Errorf(KindUnknownRole, "unknown role %q", role)
	}
	return d.accessLevel, d.permissions, nil
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", Errorf(KindUnknownRole, "unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRegistry[r]
	return ok
}

func (r Role) Label() string {
	return roleRegistry[r].label
}

type RoleInfo struct {
	Role        Role          `json:"role"`
	Label       string        `json:"label"`
	AccessLevel int           `json:"accessLevel"`
	Defaults    PermissionSet `json:"defaults"`
}

// 按权限从高到低列出所有角色
func Roles() []RoleInfo {
	out := make([]RoleInfo, 0, len(roleOrder))
	for _, r := range roleOrder {
		d := roleRegistry[r]
		out = append(out, RoleInfo{
			Role:        r,
			Label:       d.label,
			AccessLevel: d.accessLevel,
			Defaults:    d.permissions,
		})
	}
	return out
}
