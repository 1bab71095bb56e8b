package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValidationError reports the first place where a document departs from the
// AnalysisResponse contract.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "analysis: " + e.Reason
	}
	return fmt.Sprintf("analysis: %s: %s", e.Path, e.Reason)
}

// Decode parses data strictly into an AnalysisResponse. Every field is
// required except recommendations[].source, enumerations and coordinate
// ranges are enforced, and unknown fields are rejected.
func Decode(data []byte) (*AnalysisResponse, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, &ValidationError{Reason: "not valid JSON"}
	}
	root, err := object(data, "", []string{"subject", "detections"})
	if err != nil {
		return nil, err
	}

	var out AnalysisResponse
	if out.Subject, err = decodeSubject(root["subject"], "subject"); err != nil {
		return nil, err
	}
	if out.Detections, err = decodeDetections(root["detections"], "detections"); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeSubject(raw json.RawMessage, path string) (AnalysisSubject, error) {
	f, err := object(raw, path, []string{"subjectType", "description", "confidence"})
	if err != nil {
		return AnalysisSubject{}, err
	}
	var s AnalysisSubject
	st, err := f.str(path, "subjectType")
	if err != nil {
		return s, err
	}
	s.SubjectType = SubjectType(st)
	if !s.SubjectType.Valid() {
		return s, invalid(path+".subjectType", "must be one of PLANT, PEST, UNKNOWN, got %q", st)
	}
	if s.Description, err = f.str(path, "description"); err != nil {
		return s, err
	}
	if s.Confidence, err = f.unit(path, "confidence"); err != nil {
		return s, err
	}
	return s, nil
}

func decodeDetections(raw json.RawMessage, path string) ([]Detection, error) {
	items, err := array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]Detection, 0, len(items))
	for i, item := range items {
		d, err := decodeDetection(item, index(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeDetection(raw json.RawMessage, path string) (Detection, error) {
	f, err := object(raw, path, []string{"className", "confidenceScore", "severity", "boundingBox", "details"})
	if err != nil {
		return Detection{}, err
	}
	var d Detection
	if d.ClassName, err = f.str(path, "className"); err != nil {
		return d, err
	}
	if d.ConfidenceScore, err = f.num(path, "confidenceScore"); err != nil {
		return d, err
	}
	sev, err := f.str(path, "severity")
	if err != nil {
		return d, err
	}
	d.Severity = Severity(sev)
	if !d.Severity.Valid() {
		return d, invalid(path+".severity", "must be one of LOW, MEDIUM, HIGH, CRITICAL, got %q", sev)
	}
	if d.BoundingBox, err = decodeBox(f["boundingBox"], path+".boundingBox"); err != nil {
		return d, err
	}
	if d.Details, err = decodeDetails(f["details"], path+".details"); err != nil {
		return d, err
	}
	return d, nil
}

func decodeBox(raw json.RawMessage, path string) (BoundingBox, error) {
	f, err := object(raw, path, []string{"x_min", "y_min", "x_max", "y_max"})
	if err != nil {
		return BoundingBox{}, err
	}
	var b BoundingBox
	for _, c := range []struct {
		name string
		dst  *float64
	}{
		{"x_min", &b.XMin}, {"y_min", &b.YMin}, {"x_max", &b.XMax}, {"y_max", &b.YMax},
	} {
		if *c.dst, err = f.unit(path, c.name); err != nil {
			return b, err
		}
	}
	return b, nil
}

func decodeDetails(raw json.RawMessage, path string) (DetailedInfo, error) {
	f, err := object(raw, path, []string{"description", "impact", "recommendations", "knowledgeBaseTags"})
	if err != nil {
		return DetailedInfo{}, err
	}
	var d DetailedInfo
	if d.Description, err = f.str(path, "description"); err != nil {
		return d, err
	}
	if d.Impact, err = f.str(path, "impact"); err != nil {
		return d, err
	}
	if d.Recommendations, err = decodeRecommendations(f["recommendations"], path+".recommendations"); err != nil {
		return d, err
	}
	tagsPath := path + ".knowledgeBaseTags"
	tags, err := array(f["knowledgeBaseTags"], tagsPath)
	if err != nil {
		return d, err
	}
	d.KnowledgeBaseTags = make([]string, 0, len(tags))
	for i, t := range tags {
		var s string
		if isNull(t) || strict(t, &s) != nil {
			return d, invalid(index(tagsPath, i), "must be a string")
		}
		d.KnowledgeBaseTags = append(d.KnowledgeBaseTags, s)
	}
	return d, nil
}

func decodeRecommendations(raw json.RawMessage, path string) (RecommendationsGroup, error) {
	f, err := object(raw, path, []string{"biological", "chemical", "cultural"})
	if err != nil {
		return RecommendationsGroup{}, err
	}
	var g RecommendationsGroup
	for _, c := range []struct {
		name string
		dst  *[]SolutionDetail
	}{
		{"biological", &g.Biological}, {"chemical", &g.Chemical}, {"cultural", &g.Cultural},
	} {
		if *c.dst, err = decodeSolutions(f[c.name], path+"."+c.name); err != nil {
			return g, err
		}
	}
	return g, nil
}

func decodeSolutions(raw json.RawMessage, path string) ([]SolutionDetail, error) {
	items, err := array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]SolutionDetail, 0, len(items))
	for i, item := range items {
		p := index(path, i)
		f, err := object(item, p, []string{"solution", "details"}, "source")
		if err != nil {
			return nil, err
		}
		var s SolutionDetail
		if s.Solution, err = f.str(p, "solution"); err != nil {
			return nil, err
		}
		if s.Details, err = f.str(p, "details"); err != nil {
			return nil, err
		}
		if src, ok := f["source"]; ok && !isNull(src) {
			var v string
			if err := strict(src, &v); err != nil {
				return nil, invalid(p+".source", "must be a string or null")
			}
			s.Source = &v
		}
		out = append(out, s)
	}
	return out, nil
}

// --- helpers ---

type fields map[string]json.RawMessage

// object decodes raw as a JSON object that has every required key (non-null)
// and nothing beyond required and optional keys.
func object(raw json.RawMessage, path string, required []string, optional ...string) (fields, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, invalid(path, "is required")
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, invalid(path, "must be an object")
	}
	allowed := make(map[string]struct{}, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = struct{}{}
		v, ok := f[k]
		if !ok || isNull(v) {
			return nil, invalid(join(path, k), "is required")
		}
	}
	for _, k := range optional {
		allowed[k] = struct{}{}
	}
	var unknown []string
	for k := range f {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, invalid(join(path, unknown[0]), "unknown field")
	}
	return f, nil
}

func array(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, invalid(path, "is required")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid(path, "must be an array")
	}
	return items, nil
}

func (f fields) str(path, name string) (string, error) {
	var s string
	if err := strict(f[name], &s); err != nil {
		return "", invalid(join(path, name), "must be a string")
	}
	return s, nil
}

func (f fields) num(path, name string) (float64, error) {
	var v float64
	if err := strict(f[name], &v); err != nil {
		return 0, invalid(join(path, name), "must be a number")
	}
	return v, nil
}

// unit is num constrained to [0,1].
func (f fields) unit(path, name string) (float64, error) {
	v, err := f.num(path, name)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, invalid(join(path, name), "must be within [0, 1], got %s", strconv.FormatFloat(v, 'g', -1, 64))
	}
	return v, nil
}

// strict unmarshals a scalar without the usual coercions: a JSON string never
// satisfies a number and vice versa.
func strict(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
