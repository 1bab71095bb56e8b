package types

// SubjectType is what the image mainly shows.
type SubjectType string

const (
	SubjectPlant   SubjectType = "PLANT"
	SubjectPest    SubjectType = "PEST"
	SubjectUnknown SubjectType = "UNKNOWN"
)

func (s SubjectType) Valid() bool {
	switch s {
	case SubjectPlant, SubjectPest, SubjectUnknown:
		return true
	}
	return false
}

// Severity of a single detection.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AnalysisResponse is the contract returned to callers of /api/v8/analyze-image.
type AnalysisResponse struct {
	Subject    AnalysisSubject `json:"subject"`
	Detections []Detection     `json:"detections"`
}

type AnalysisSubject struct {
	SubjectType SubjectType `json:"subjectType"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"` // 0..1
}

type Detection struct {
	ClassName       string       `json:"className"`
	ConfidenceScore float64      `json:"confidenceScore"`
	Severity        Severity     `json:"severity"`
	BoundingBox     BoundingBox  `json:"boundingBox"`
	Details         DetailedInfo `json:"details"`
}

// BoundingBox uses normalized image coordinates, every edge in [0,1].
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

type DetailedInfo struct {
	Description       string               `json:"description"`
	Impact            string               `json:"impact"`
	Recommendations   RecommendationsGroup `json:"recommendations"`
	KnowledgeBaseTags []string             `json:"knowledgeBaseTags"`
}

// RecommendationsGroup never carries nil slices; an empty category is [].
type RecommendationsGroup struct {
	Biological []SolutionDetail `json:"biological"`
	Chemical   []SolutionDetail `json:"chemical"`
	Cultural   []SolutionDetail `json:"cultural"`
}

type SolutionDetail struct {
	Solution string  `json:"solution"`
	Details  string  `json:"details"`
	Source   *string `json:"source"` // URL, optional
}
