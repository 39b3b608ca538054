package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlinehq/fieldline/internal/model"
	"github.com/fieldlinehq/fieldline/internal/store"
)

// Working hours used by availability and booking. Stored times are UTC;
// the assistant is expected to present them in the tenant's locale.
const (
	workDayStartHour = 8
	workDayEndHour   = 18
)

const defaultMeetingMinutes = 60

func (r *Registry) catalog() []*Tool {
	return []*Tool{
		{
			Definition: Definition{
				Name: "search_contacts",
				Description: "Search the CRM for customer contacts by name, email, or phone number. " +
					"Returns matching contacts with their details. Use this to look up a caller " +
					"before creating a duplicate lead or booking a meeting.",
				InputSchema: Schema{
					Type: "object",
					Properties: map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "Name, email, or phone fragment to search for. Empty lists recent contacts.",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"minimum":     1,
							"maximum":     100,
							"description": "Maximum number of contacts to return (default 25).",
						},
					},
					AdditionalProperties: boolPtr(false),
				},
			},
			Scope:   model.ScopeContactsRead,
			handler: r.handleSearchContacts,
		},
		{
			Definition: Definition{
				Name: "create_lead",
				Description: "Create a new sales lead from a call or conversation. Captures the " +
					"prospect's name, contact details, and what they are asking for. The lead " +
					"enters the pipeline with status \"new\".",
				InputSchema: Schema{
					Type: "object",
					Properties: map[string]interface{}{
						"name": map[string]interface{}{
							"type":        "string",
							"minLength":   1,
							"description": "Full name of the prospect.",
						},
						"email": map[string]interface{}{
							"type":        "string",
							"description": "Email address, if provided.",
						},
						"phone": map[string]interface{}{
							"type":        "string",
							"description": "Phone number, if provided.",
						},
						"source": map[string]interface{}{
							"type":        "string",
							"description": "Where the lead came from, e.g. \"phone call\" or \"website\".",
						},
						"notes": map[string]interface{}{
							"type":        "string",
							"description": "Free-form notes about what the prospect needs.",
						},
					},
					Required:             []string{"name"},
					AdditionalProperties: boolPtr(false),
				},
			},
			Scope:   model.ScopeLeadsWrite,
			handler: r.handleCreateLead,
		},
		{
			Definition: Definition{
				Name: "update_lead_status",
				Description: "Move a lead to a new pipeline status. Valid statuses: new, contacted, " +
					"quoted, won, lost.",
				InputSchema: Schema{
					Type: "object",
					Properties: map[string]interface{}{
						"lead_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of the lead to update.",
						},
						"status": map[string]interface{}{
							"type":        "string",
							"enum":        model.LeadStatuses,
							"description": "Target pipeline status.",
						},
					},
					Required:             []string{"lead_id", "status"},
					AdditionalProperties: boolPtr(false),
				},
			},
			Scope:   model.ScopeLeadsWrite,
			handler: r.handleUpdateLeadStatus,
		},
		{
			Definition: Definition{
				Name: "check_availability",
				Description: "List the free time slots on a given day, within working hours " +
					"(08:00-18:00 UTC). Use this before booking a meeting to offer the caller " +
					"concrete times.",
				InputSchema: Schema{
					Type: "object",
					Properties: map[string]interface{}{
						"date": map[string]interface{}{
							"type":        "string",
							"pattern":     `^\d{4}-\d{2}-\d{2}$`,
							"description": "Day to check, formatted YYYY-MM-DD.",
						},
						"duration_minutes": map[string]interface{}{
							"type":        "integer",
							"minimum":     15,
							"maximum":     480,
							"description": "Minimum slot length to report (default 60).",
						},
					},
					Required:             []string{"date"},
					AdditionalProperties: boolPtr(false),
				},
			},
			Scope:   model.ScopeEventsRead,
			handler: r.handleCheckAvailability,
		},
		{
			Definition: Definition{
				Name: "book_meeting",
				Description: "Book a meeting or site visit on the calendar. Fails when the requested " +
					"slot overlaps an existing booking, so check availability first.",
				InputSchema: Schema{
					Type: "object",
					Properties: map[string]interface{}{
						"title": map[string]interface{}{
							"type":        "string",
							"minLength":   1,
							"description": "Short description of the meeting.",
						},
						"start": map[string]interface{}{
							"type":        "string",
							"description": "Start time in RFC 3339 format, e.g. 2026-09-01T14:00:00Z.",
						},
						"duration_minutes": map[string]interface{}{
							"type":        "integer",
							"minimum":     15,
							"maximum":     480,
							"description": "Meeting length (default 60).",
						},
						"contact_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of an existing contact to attach, if known.",
						},
					},
					Required:             []string{"title", "start"},
					AdditionalProperties: boolPtr(false),
				},
			},
			Scope:   model.ScopeEventsWrite,
			handler: r.handleBookMeeting,
		},
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (r *Registry) handleSearchContacts(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	query := stringArg(args, "query")
	limit := intArg(args, "limit", 25)

	contacts, err := r.store.SearchContacts(ctx, tenantID, query, limit)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	return map[string]interface{}{
		"contacts": contacts,
		"count":    len(contacts),
	}, nil
}

func (r *Registry) handleCreateLead(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	lead := &model.Lead{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     stringArg(args, "name"),
		Email:    stringArg(args, "email"),
		Phone:    stringArg(args, "phone"),
		Source:   stringArg(args, "source"),
		Notes:    stringArg(args, "notes"),
	}
	if err := r.store.CreateLead(ctx, lead); err != nil {
		return nil, err
	}
	return map[string]interface{}{"lead": lead}, nil
}

func (r *Registry) handleUpdateLeadStatus(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	leadID := stringArg(args, "lead_id")
	status := stringArg(args, "status")

	if err := r.store.UpdateLeadStatus(ctx, tenantID, leadID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lead %s not found", leadID)
		}
		return nil, err
	}
	lead, err := r.store.GetLead(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"lead": lead}, nil
}

// slot is one free window reported by check_availability.
type slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r *Registry) handleCheckAvailability(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	day, err := time.Parse("2006-01-02", stringArg(args, "date"))
	if err != nil {
		return nil, fmt.Errorf("invalid date: %v", err)
	}
	minLen := time.Duration(intArg(args, "duration_minutes", defaultMeetingMinutes)) * time.Minute

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), workDayStartHour, 0, 0, 0, time.UTC)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), workDayEndHour, 0, 0, 0, time.UTC)

	events, err := r.store.ListEventsBetween(ctx, tenantID, dayStart.Unix(), dayEnd.Unix())
	if err != nil {
		return nil, err
	}

	free := freeSlots(dayStart, dayEnd, events, minLen)
	return map[string]interface{}{
		"date":       day.Format("2006-01-02"),
		"work_start": dayStart.Format(time.RFC3339),
		"work_end":   dayEnd.Format(time.RFC3339),
		"free_slots": free,
	}, nil
}

// freeSlots subtracts booked events from the [dayStart, dayEnd) window and
// returns the gaps of at least minLen. Events are ordered by start time.
func freeSlots(dayStart, dayEnd time.Time, events []model.Event, minLen time.Duration) []slot {
	free := []slot{}
	cursor := dayStart
	for _, ev := range events {
		start := ev.Start()
		if start.After(cursor) && start.Sub(cursor) >= minLen {
			free = append(free, slot{
				Start: cursor.Format(time.RFC3339),
				End:   start.Format(time.RFC3339),
			})
		}
		if end := ev.End(); end.After(cursor) {
			cursor = end
		}
	}
	if dayEnd.After(cursor) && dayEnd.Sub(cursor) >= minLen {
		free = append(free, slot{
			Start: cursor.Format(time.RFC3339),
			End:   dayEnd.Format(time.RFC3339),
		})
	}
	return free
}

func (r *Registry) handleBookMeeting(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	start, err := time.Parse(time.RFC3339, stringArg(args, "start"))
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %v", err)
	}
	duration := time.Duration(intArg(args, "duration_minutes", defaultMeetingMinutes)) * time.Minute

	contactID := stringArg(args, "contact_id")
	if contactID != "" {
		if _, err := r.store.GetContact(ctx, tenantID, contactID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("contact %s not found", contactID)
			}
			return nil, err
		}
	}

	event := &model.Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ContactID: contactID,
		Title:     stringArg(args, "title"),
		StartAt:   start.UTC().Unix(),
		EndAt:     start.UTC().Add(duration).Unix(),
	}
	if err := r.store.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("the requested time is not available")
		}
		return nil, err
	}
	return map[string]interface{}{"event": event}, nil
}

// ---------------------------------------------------------------------------
// Argument extraction. Arguments have already passed schema validation, so
// these only normalize JSON types.
// ---------------------------------------------------------------------------

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
