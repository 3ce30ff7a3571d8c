package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-crm-client/leads"
)

// ListLeadsOptions narrows a lead listing. The zero value lists all active
// leads owned by the authenticated user.
type ListLeadsOptions struct {
	Status   string
	Search   string
	IsActive *bool // false lists soft-deleted leads
}

// ListLeads returns the user's leads, filtered by the given options.
func (c *Client) ListLeads(ctx context.Context, opts ListLeadsOptions) ([]leads.Lead, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.IsActive != nil {
		query.Set("is_active", fmt.Sprintf("%t", *opts.IsActive))
	}

	var result []leads.Lead
	if err := c.do(ctx, http.MethodGet, "/leads/", query, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetLead fetches a single lead.
func (c *Client) GetLead(ctx context.Context, id int64) (*leads.Lead, error) {
	var lead leads.Lead
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d/", id), nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateLead creates a lead and returns the stored record.
func (c *Client) CreateLead(ctx context.Context, lead leads.NewLead) (*leads.Lead, error) {
	var created leads.Lead
	if err := c.do(ctx, http.MethodPost, "/leads/", nil, lead, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateLead applies a partial update to a lead.
func (c *Client) UpdateLead(ctx context.Context, id int64, patch leads.LeadPatch) (*leads.Lead, error) {
	var updated leads.Lead
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/leads/%d/", id), nil, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteLead soft-deletes a lead; RestoreLead brings it back.
func (c *Client) DeleteLead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/leads/%d/", id), nil, nil, nil)
}

// RestoreLead reactivates a soft-deleted lead.
func (c *Client) RestoreLead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/leads/%d/restore/", id), nil, nil, nil)
}

// ListActivities returns the activity log for a lead, newest first.
func (c *Client) ListActivities(ctx context.Context, leadID int64) ([]leads.Activity, error) {
	var result []leads.Activity
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d/activities/", leadID), nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetActivity fetches a single logged activity.
func (c *Client) GetActivity(ctx context.Context, leadID, activityID int64) (*leads.Activity, error) {
	var activity leads.Activity
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d/activities/%d/", leadID, activityID), nil, nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// CreateActivity logs an activity against a lead.
func (c *Client) CreateActivity(ctx context.Context, leadID int64, activity leads.NewActivity) (*leads.Activity, error) {
	var created leads.Activity
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/leads/%d/activities/", leadID), nil, activity, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateActivity applies a partial update to a logged activity.
func (c *Client) UpdateActivity(ctx context.Context, leadID, activityID int64, patch leads.ActivityPatch) (*leads.Activity, error) {
	var updated leads.Activity
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/leads/%d/activities/%d/", leadID, activityID), nil, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteActivity removes a logged activity.
func (c *Client) DeleteActivity(ctx context.Context, leadID, activityID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/leads/%d/activities/%d/", leadID, activityID), nil, nil, nil)
}

// RecentActivities returns the most recent activities across all leads.
func (c *Client) RecentActivities(ctx context.Context) ([]leads.Activity, error) {
	var result []leads.Activity
	if err := c.do(ctx, http.MethodGet, "/activities/recent/", nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
