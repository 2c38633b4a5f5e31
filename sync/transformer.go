// ABOUTME: Maps HubSpot contacts onto local candidate records
// ABOUTME: Static field table decoded with mapstructure; pure apart from the injected clock
package sync

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/clear-match/clearmatch/models"
	"github.com/mitchellh/mapstructure"
)

// ISOTimestamp is the timestamp layout written to candidate date fields and provenance.
const ISOTimestamp = "2006-01-02T15:04:05.000Z"

const (
	DefaultFirstName = "Unknown"
	DefaultLastName  = "Contact"

	listSeparator = ";"
)

// FieldKind selects how a remote value is coerced before decoding.
type FieldKind int

const (
	KindString FieldKind = iota
	KindList
	KindTimestamp
)

// FieldMapping maps one HubSpot property onto a candidate column.
type FieldMapping struct {
	Remote string
	Local  string
	Kind   FieldKind
}

// FieldMappings is the HubSpot property to candidate column table.
var FieldMappings = []FieldMapping{
	{Remote: "firstname", Local: "first_name"},
	{Remote: "lastname", Local: "last_name"},
	{Remote: "email", Local: "personal_email"},
	{Remote: "work_email", Local: "work_email"},
	{Remote: "phone", Local: "phone"},
	{Remote: "jobtitle", Local: "current_job_title"},
	{Remote: "company", Local: "current_company"},
	{Remote: "industry", Local: "industry"},
	{Remote: "linkedin_url", Local: "linkedin_url"},
	{Remote: "github_url", Local: "github_url"},
	{Remote: "tech_stack", Local: "tech_stack", Kind: KindList},
	{Remote: "past_titles", Local: "past_titles", Kind: KindList},
	{Remote: "createdate", Local: "remote_created_at", Kind: KindTimestamp},
	{Remote: "lastmodifieddate", Local: "remote_updated_at", Kind: KindTimestamp},
}

// Location properties, composed into models.Location.
const (
	propCity    = "city"
	propState   = "state"
	propCountry = "country"
)

// RemoteProperties lists every HubSpot property the transformer reads, for the
// client's property projection.
func RemoteProperties() []string {
	props := make([]string, 0, len(FieldMappings)+3)
	for _, m := range FieldMappings {
		props = append(props, m.Remote)
	}
	return append(props, propCity, propState, propCountry)
}

// Transformer converts remote contacts to candidates.
type Transformer struct {
	now func() time.Time
}

// NewTransformer returns a Transformer using clock for provenance timestamps. A nil clock uses time.Now.
func NewTransformer(clock func() time.Time) *Transformer {
	if clock == nil {
		clock = time.Now
	}
	return &Transformer{now: clock}
}

// Transform maps remote onto a new candidate owned by organizationID and attributed to actorID.
func (t *Transformer) Transform(remote models.RemoteContact, organizationID, actorID string) (*models.Candidate, error) {
	bag := map[string]interface{}{
		"organization_id": organizationID,
		"created_by":      actorID,
		"updated_by":      actorID,
	}

	for _, m := range FieldMappings {
		raw := strings.TrimSpace(remote.Properties[m.Remote])
		switch m.Kind {
		case KindTimestamp:
			if ts, ok := NormalizeTimestamp(raw); ok {
				bag[m.Local] = ts
			}
		default:
			bag[m.Local] = raw
		}
	}

	var c models.Candidate
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: splitListHook(listSeparator),
		Result:     &c,
		TagName:    "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(bag); err != nil {
		return nil, fmt.Errorf("failed to decode contact %s: %w", remote.ID, err)
	}

	if c.TechStack == nil {
		c.TechStack = []string{}
	}
	if c.PastTitles == nil {
		c.PastTitles = []string{}
	}

	if c.FirstName == "" && c.LastName == "" {
		c.FirstName = DefaultFirstName
		c.LastName = DefaultLastName
	}

	if city := strings.TrimSpace(remote.Properties[propCity]); city != "" {
		c.Location = &models.Location{
			City:    city,
			Region:  strings.TrimSpace(remote.Properties[propState]),
			Country: strings.TrimSpace(remote.Properties[propCountry]),
		}
	}

	props := make(map[string]string, len(remote.Properties))
	for k, v := range remote.Properties {
		props[k] = v
	}
	c.NurturingInfo = models.NurturingInfo{
		Source:            models.SourceHubSpot,
		HubSpotID:         remote.ID,
		LastSyncedAt:      t.now().UTC().Format(ISOTimestamp),
		HubSpotProperties: props,
	}

	return &c, nil
}

// splitListHook decodes a sep-joined string into a []string, trimming parts and dropping empties.
func splitListHook(sep string) mapstructure.DecodeHookFuncType {
	stringSlice := reflect.TypeOf([]string{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != stringSlice {
			return data, nil
		}
		return SplitList(data.(string), sep), nil
	}
}

// SplitList splits s on sep, trimming whitespace and dropping empty parts. Never returns nil.
func SplitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeTimestamp converts an epoch-milliseconds or RFC3339 string to ISOTimestamp in UTC.
func NormalizeTimestamp(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC().Format(ISOTimestamp), true
	}

	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC().Format(ISOTimestamp), true
	}

	return "", false
}
