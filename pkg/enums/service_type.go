package enums

import (
	"fmt"
	"strings"
)

// ServiceKind selects the document template family and fulfillment rules.
type ServiceKind string

const (
	ServiceKindCVWriting    ServiceKind = "cv_writing"
	ServiceKindCoverLetter  ServiceKind = "cover_letter"
	ServiceKindResumeDesign ServiceKind = "resume_design"
	ServiceKindAgreement    ServiceKind = "agreement"
)

var validServiceKinds = []ServiceKind{
	ServiceKindCVWriting,
	ServiceKindCoverLetter,
	ServiceKindResumeDesign,
	ServiceKindAgreement,
}

func (k ServiceKind) String() string {
	return string(k)
}

func (k ServiceKind) IsValid() bool {
	for _, candidate := range validServiceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ServiceType is the parsed form of an order's service_type column.
// Agreement orders are stored as "agreement:<template>".
type ServiceType struct {
	Kind     ServiceKind
	Template string
}

func (s ServiceType) String() string {
	if s.Kind == ServiceKindAgreement {
		return string(s.Kind) + ":" + s.Template
	}
	return string(s.Kind)
}

// NeedsEnrichment reports whether the product ships AI-authored prose.
func (s ServiceType) NeedsEnrichment() bool {
	return s.Kind == ServiceKindCVWriting || s.Kind == ServiceKindCoverLetter
}

func ParseServiceType(value string) (ServiceType, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	kind, template, hasTemplate := strings.Cut(raw, ":")

	st := ServiceType{Kind: ServiceKind(kind)}
	if !st.Kind.IsValid() {
		return ServiceType{}, fmt.Errorf("invalid service type %q", value)
	}
	if st.Kind == ServiceKindAgreement {
		template = strings.TrimSpace(template)
		if template == "" {
			return ServiceType{}, fmt.Errorf("agreement service type %q requires a template id", value)
		}
		st.Template = template
		return st, nil
	}
	if hasTemplate {
		return ServiceType{}, fmt.Errorf("service type %q does not take a template", value)
	}
	return st, nil
}
