package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthorizationDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "employer_access_authorization_decisions_total",
		Help: "Authorization decisions by permission and outcome",
	}, []string{"permission", "decision"})

	AccountsProvisioned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "employer_access_accounts_provisioned_total",
		Help: "Accounts created by role and origin (self or admin)",
	}, []string{"role", "origin"})

	ProvisioningFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "employer_access_provisioning_failures_total",
		Help: "Account provisioning attempts that failed after validation",
	})

	MailsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "employer_access_mails_published_total",
		Help: "Mail messages published to the queue by type",
	}, []string{"type"})
)

// Register 在 reg 上注册所有指标，reg 为 nil 时使用默认注册表；重复注册不算错误
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		AuthorizationDecisions,
		AccountsProvisioned,
		ProvisioningFailures,
		MailsPublished,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
