package crawler

import (
	"fmt"
	"strconv"
	"strings"
)

// remoteWorkType is the listing endpoint's f_WT code for remote positions.
const remoteWorkType = "2"

// MaxHoursOld is the largest posting age filter accepted, one year.
const MaxHoursOld = 24 * 365

// SearchCriteria is the immutable input of one crawl.
type SearchCriteria struct {
	Keywords      string   `json:"keywords" mapstructure:"keywords"`
	Location      string   `json:"location" mapstructure:"location"`
	Distance      int      `json:"distance" mapstructure:"distance"`
	Remote        bool     `json:"remote" mapstructure:"remote"`
	JobType       string   `json:"job_type" mapstructure:"job_type"`
	EasyApply     bool     `json:"easy_apply" mapstructure:"easy_apply"`
	CompanyIDs    []string `json:"company_ids" mapstructure:"company_ids"`
	Offset        int      `json:"offset" mapstructure:"offset"`
	ResultsWanted int      `json:"results_wanted" mapstructure:"results_wanted"`
	HoursOld      int      `json:"hours_old" mapstructure:"hours_old"`
}

// NewSearchCriteria returns criteria with an explicit empty company list and the
// given cap.
func NewSearchCriteria(keywords string, resultsWanted int) SearchCriteria {
	return SearchCriteria{
		Keywords:      keywords,
		CompanyIDs:    []string{},
		ResultsWanted: resultsWanted,
	}
}

// Normalize returns a copy with trimmed strings and a private, non-nil company list.
func (c SearchCriteria) Normalize() SearchCriteria {
	out := c
	out.Keywords = strings.TrimSpace(c.Keywords)
	out.Location = strings.TrimSpace(c.Location)
	out.JobType = strings.TrimSpace(c.JobType)
	ids := make([]string, 0, len(c.CompanyIDs))
	for _, id := range c.CompanyIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	out.CompanyIDs = ids
	return out
}

// Validate rejects criteria the controller cannot honour.
func (c SearchCriteria) Validate() error {
	if c.ResultsWanted < 1 {
		return fmt.Errorf("results_wanted must be >= 1, got %d", c.ResultsWanted)
	}
	if c.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", c.Offset)
	}
	if c.Distance < 0 {
		return fmt.Errorf("distance must be >= 0, got %d", c.Distance)
	}
	if c.HoursOld < 0 || c.HoursOld > MaxHoursOld {
		return fmt.Errorf("hours_old must be between 0 and %d, got %d", MaxHoursOld, c.HoursOld)
	}
	return nil
}

// StartCursor is the offset rounded down to a multiple of ten.
func (c SearchCriteria) StartCursor() int {
	if c.Offset <= 0 {
		return 0
	}
	return c.Offset / 10 * 10
}

// QueryParams builds the listing request parameters for the given cursor.
// Absent values are omitted.
func (c SearchCriteria) QueryParams(cursor int) map[string]string {
	params := map[string]string{
		"pageNum": "0",
		"start":   strconv.Itoa(cursor),
	}
	if c.Keywords != "" {
		params["keywords"] = c.Keywords
	}
	if c.Location != "" {
		params["location"] = c.Location
	}
	if c.Distance > 0 {
		params["distance"] = strconv.Itoa(c.Distance)
	}
	if c.Remote {
		params["f_WT"] = remoteWorkType
	}
	if c.JobType != "" {
		params["f_JT"] = c.JobType
	}
	if c.EasyApply {
		params["f_AL"] = "true"
	}
	if len(c.CompanyIDs) > 0 {
		params["f_C"] = strings.Join(c.CompanyIDs, ",")
	}
	if c.HoursOld > 0 {
		params["f_TPR"] = fmt.Sprintf("r%d", c.HoursOld*3600)
	}
	return params
}
