package monitor

type DBQueryLabels struct {
	QueryType string
}

type SubmissionLabels struct {
	AssetCode string
	Outcome   string
}

func (s SubmissionLabels) ToMap() map[string]string {
	return map[string]string{
		"asset_code": s.AssetCode,
		"outcome":    s.Outcome,
	}
}
