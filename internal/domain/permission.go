package domain

import (
	"encoding/json"
	"slices"
	"sort"
)

type Permission string

const (
	// 职位发布
	PermPostJobs             Permission = "canPostJobs"
	PermWriteJobDescriptions Permission = "canWriteJobDescriptions"
	PermEditJobs             Permission = "canEditJobs"
	PermDeleteJobs           Permission = "canDeleteJobs"
	PermAssignJobs           Permission = "canAssignJobs"
	PermTransferJobs         Permission = "canTransferJobs"
	PermWithdrawJobs         Permission = "canWithdrawJobs"

	// 申请
	PermViewApplications    Permission = "canViewApplications"
	PermReviewApplications  Permission = "canReviewApplications"
	PermShortlistCandidates Permission = "canShortlistCandidates"
	PermRejectCandidates    Permission = "canRejectCandidates"
	PermScheduleInterviews  Permission = "canScheduleInterviews"

	// 报表
	PermPullAppliedReports     Permission = "canPullAppliedReports"
	PermPullShortlistedReports Permission = "canPullShortlistedReports"
	PermPullRejectedReports    Permission = "canPullRejectedReports"
	PermPullFullReports        Permission = "canPullFullReports"
	PermExportReports          Permission = "canExportReports"

	// 管理员
	PermAddUsers          Permission = "canAddUsers"
	PermDeleteUsers       Permission = "canDeleteUsers"
	PermResetPasswords    Permission = "canResetPasswords"
	PermManageSettings    Permission = "canManageSettings"
	PermManagePermissions Permission = "canManagePermissions"

	// 分析
	PermViewAnalytics      Permission = "canViewAnalytics"
	PermViewAllJobs        Permission = "canViewAllJobs"
	PermMonitorPerformance Permission = "canMonitorPerformance"

	// 团队管理
	PermAssignTasks Permission = "canAssignTasks"
	PermApproveJobs Permission = "canApproveJobs"
	PermManageTeam  Permission = "canManageTeam"
)

type PermissionCategory string

const (
	CategoryJobPosting   PermissionCategory = "job_posting"
	CategoryApplications PermissionCategory = "applications"
	CategoryReporting    PermissionCategory = "reporting"
	CategoryAdmin        PermissionCategory = "admin"
	CategoryAnalytics    PermissionCategory = "analytics"
	CategoryManagement   PermissionCategory = "management"
)

type permissionDef struct {
	name     Permission
	column   string
	category PermissionCategory
}

// 顺序即数据库列顺序，只能追加
var vocabulary = [...]permissionDef{
	{PermPostJobs, "can_post_jobs", CategoryJobPosting},
	{PermWriteJobDescriptions, "can_write_job_descriptions", CategoryJobPosting},
	{PermEditJobs, "can_edit_jobs", CategoryJobPosting},
	{PermDeleteJobs, "can_delete_jobs", CategoryJobPosting},
	{PermAssignJobs, "can_assign_jobs", CategoryJobPosting},
	{PermTransferJobs, "can_transfer_jobs", CategoryJobPosting},
	{PermWithdrawJobs, "can_withdraw_jobs", CategoryJobPosting},

	{PermViewApplications, "can_view_applications", CategoryApplications},
	{PermReviewApplications, "can_review_applications", CategoryApplications},
	{PermShortlistCandidates, "can_shortlist_candidates", CategoryApplications},
	{PermRejectCandidates, "can_reject_candidates", CategoryApplications},
	{PermScheduleInterviews, "can_schedule_interviews", CategoryApplications},

	{PermPullAppliedReports, "can_pull_applied_reports", CategoryReporting},
	{PermPullShortlistedReports, "can_pull_shortlisted_reports", CategoryReporting},
	{PermPullRejectedReports, "can_pull_rejected_reports", CategoryReporting},
	{PermPullFullReports, "can_pull_full_reports", CategoryReporting},
	{PermExportReports, "can_export_reports", CategoryReporting},

	{PermAddUsers, "can_add_users", CategoryAdmin},
	{PermDeleteUsers, "can_delete_users", CategoryAdmin},
	{PermResetPasswords, "can_reset_passwords", CategoryAdmin},
	{PermManageSettings, "can_manage_settings", CategoryAdmin},
	{PermManagePermissions, "can_manage_permissions", CategoryAdmin},

	{PermViewAnalytics, "can_view_analytics", CategoryAnalytics},
	{PermViewAllJobs, "can_view_all_jobs", CategoryAnalytics},
	{PermMonitorPerformance, "can_monitor_performance", CategoryAnalytics},

	{PermAssignTasks, "can_assign_tasks", CategoryManagement},
	{PermApproveJobs, "can_approve_jobs", CategoryManagement},
	{PermManageTeam, "can_manage_team", CategoryManagement},
}

const permissionCount = len(vocabulary)

var permissionIndex = func() map[Permission]int {
	m := make(map[Permission]int, permissionCount)
	for i, def := range vocabulary {
		m[def.name] = i
	}
	return m
}()

// 按存储顺序返回全部权限
func Permissions() []Permission {
	out := make([]Permission, permissionCount)
	for i, def := range vocabulary {
		out[i] = def.name
	}
	return out
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", Errorf(KindUnknownPermission, "unknown permission %q", s)
	}
	return p, nil
}

func (p Permission) Valid() bool {
	_, ok := permissionIndex[p]
	return ok
}

// 存储该权限的布尔列名
func (p Permission) Column() string {
	if i, ok := permissionIndex[p]; ok {
		return vocabulary[i].column
	}
	return ""
}

func (p Permission) Category() PermissionCategory {
	if i, ok := permissionIndex[p]; ok {
		return vocabulary[i].category
	}
	return ""
}

// PermissionSet 的零值拒绝一切权限，赋值即复制全部标志位
type PermissionSet struct {
	flags [permissionCount]bool
}

type PermissionOverrides map[Permission]bool

func ParseOverrides(raw map[string]bool) (PermissionOverrides, error) {
	out := make(PermissionOverrides, len(raw))
	for name, v := range raw {
		p, err := ParsePermission(name)
		if err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}

func AllGranted() PermissionOverrides {
	out := make(PermissionOverrides, permissionCount)
	for _, def := range vocabulary {
		out[def.name] = true
	}
	return out
}

func NewPermissionSet(granted ...Permission) (PermissionSet, error) {
	var s PermissionSet
	for _, p := range granted {
		if err := s.Set(p, true); err != nil {
			return PermissionSet{}, err
		}
	}
	return s, nil
}

func (s PermissionSet) Get(p Permission) (bool, error) {
	i, ok := permissionIndex[p]
	if !ok {
		return false, Errorf(KindUnknownPermission, "unknown permission %q", p)
	}
	return s.flags[i], nil
}

func (s *PermissionSet) Set(p Permission, v bool) error {
	i, ok := permissionIndex[p]
	if !ok {
		return Errorf(KindUnknownPermission, "unknown permission %q", p)
	}
	s.flags[i] = v
	return nil
}

// 只修改 overrides 中出现的键，先校验所有键再修改，避免部分生效
func (s *PermissionSet) Merge(overrides PermissionOverrides) error {
	for p := range overrides {
		if !p.Valid() {
			return Errorf(KindUnknownPermission, "unknown permission %q", p)
		}
	}
	for p, v := range overrides {
		s.flags[permissionIndex[p]] = v
	}
	return nil
}

func (s PermissionSet) Granted() []Permission {
	out := make([]Permission, 0)
	for i, def := range vocabulary {
		if s.flags[i] {
			out = append(out, def.name)
		}
	}
	return out
}

func (s PermissionSet) Empty() bool {
	return !slices.Contains(s.flags[:], true)
}

func (s PermissionSet) Values() []bool {
	out := make([]bool, permissionCount)
	copy(out, s.flags[:])
	return out
}

func PermissionSetFromValues(values []bool) (PermissionSet, error) {
	var s PermissionSet
	if len(values) != permissionCount {
		return s, Errorf(KindUnknownPermission, "expected %d permission values, got %d", permissionCount, len(values))
	}
	copy(s.flags[:], values)
	return s, nil
}

func (s PermissionSet) Map() map[string]bool {
	m := make(map[string]bool, permissionCount)
	for i, def := range vocabulary {
		m[string(def.name)] = s.flags[i]
	}
	return m
}

// m 中缺失的键为 false，不在词表中的键直接拒绝
func PermissionSetFromMap(m map[string]bool) (PermissionSet, error) {
	var s PermissionSet
	overrides, err := ParseOverrides(m)
	if err != nil {
		return s, err
	}
	if err := s.Merge(overrides); err != nil {
		return s, err
	}
	return s, nil
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := PermissionSetFromMap(m)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type PermissionGroup struct {
	Category    PermissionCategory `json:"category"`
	Permissions []Permission       `json:"permissions"`
}

func PermissionGroups() []PermissionGroup {
	groups := make([]PermissionGroup, 0)
	pos := make(map[PermissionCategory]int)
	for _, def := range vocabulary {
		i, ok := pos[def.category]
		if !ok {
			i = len(groups)
			pos[def.category] = i
			groups = append(groups, PermissionGroup{Category: def.category})
		}
		groups[i].Permissions = append(groups[i].Permissions, def.name)
	}
	return groups
}

func SortedNames(overrides PermissionOverrides) []string {
	names := make([]string, 0, len(overrides))
	for p := range overrides {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
