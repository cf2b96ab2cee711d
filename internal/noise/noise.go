// Package noise suppresses high-volume benign variants of two event types
// before they pollute any count: service logons reported as successful
// logons, and special-privilege assignments to the local system identity.
// It also harvests real account names from logon records.
package noise

import (
	"strings"

	"github.com/seshat-forensics/evtxtriage/internal/model"
)

const (
	successfulLogonID   = 4624
	specialPrivilegesID = 4672

	// Logon type 5 is a service logon, emitted constantly by the service
	// control manager.
	serviceLogonType = "5"

	// Well-known SID of the local system account.
	localSystemSID = "S-1-5-18"
)

// Verdict is the outcome of the noise gate for one record.
type Verdict struct {
	// Drop marks the record as noise: it must not reach the classifier,
	// any count, or the timeline.
	Drop bool

	// User is a harvested target account name, or empty. It is extracted
	// from the same structured-field lookup as the drop decision and is
	// reported even when the record is dropped.
	User string
}

// Evaluate applies the noise rules to a record. A missing or unparseable
// structured field never fails the run: the record proceeds as not-noise.
func Evaluate(rec *model.Record) Verdict {
	switch rec.EventID {
	case successfulLogonID:
		return evaluateLogon(rec.Fields)
	case specialPrivilegesID:
		return evaluatePrivileges(rec.Fields)
	}
	return Verdict{}
}

func evaluateLogon(fields model.Fields) Verdict {
	var v Verdict
	if lt, ok := fields.Get("LogonType"); ok && lt == serviceLogonType {
		v.Drop = true
	}
	if u, ok := fields.Get("TargetUserName"); ok && isRealAccount(u) {
		v.User = u
	}
	return v
}

func evaluatePrivileges(fields model.Fields) Verdict {
	sid, ok := fields.Get("SubjectUserSid")
	if !ok {
		return Verdict{}
	}
	return Verdict{Drop: strings.EqualFold(sid, localSystemSID)}
}

// isRealAccount filters out machine accounts and the well-known service
// identities that show up in nearly every log.
func isRealAccount(name string) bool {
	if name == "" || strings.HasSuffix(name, "$") {
		return false
	}
	upper := strings.ToUpper(name)
	switch upper {
	case "SYSTEM", "LOCAL SERVICE", "NETWORK SERVICE", "ANONYMOUS LOGON":
		return false
	}
	if strings.HasPrefix(upper, "DWM-") || strings.HasPrefix(upper, "UMFD-") {
		return false
	}
	return true
}
