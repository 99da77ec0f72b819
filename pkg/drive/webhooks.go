package drive

import "context"

// WebhookPayload is the body delivered to a webhook URL: the event, the
// resource it concerns, and the resource's state on both sides of the
// mutation. Snapshots are raw JSON documents of the projected record;
// either side may be nil (created, deleted).
type WebhookPayload struct {
	Event       WebhookEvent `json:"event"`
	ResourceID  string       `json:"resource_id,omitempty"`
	AltIndex    string       `json:"alt_index,omitempty"`
	Before      any          `json:"before,omitempty"`
	After       any          `json:"after,omitempty"`
	Note        string       `json:"note,omitempty"`
	TimestampNS int64        `json:"timestamp_ns"`
}

// WebhookInput carries the fields of a new webhook.
type WebhookInput struct {
	ID         string
	AltIndex   string
	Event      WebhookEvent
	URL        string
	Signature  string
	Note       string
	Filters    string
	ExternalID string
}

// GetWebhook returns the webhook record for id.
func (t *Tenant) GetWebhook(id WebhookID) (Webhook, error) {
	hook, ok := t.webhooks.Get(id)
	if !ok {
		return Webhook{}, NotFound("webhook")
	}
	return hook, nil
}

// Webhooks returns every webhook in insertion order.
func (t *Tenant) Webhooks() []Webhook {
	ids := t.webhookList.Items()
	out := make([]Webhook, 0, len(ids))
	for _, id := range ids {
		if hook, ok := t.webhooks.Get(id); ok {
			out = append(out, hook)
		}
	}
	return out
}

// CreateWebhook registers a subscription. AltIndex narrows the event to a
// resource or user ID; an empty alt index matches every firing of the
// event.
func (t *Tenant) CreateWebhook(in WebhookInput) (Webhook, error) {
	if !ValidWebhookEvent(in.Event) {
		return Webhook{}, BadRequest("event", "unknown webhook event")
	}
	if in.URL == "" {
		return Webhook{}, BadRequest("url", "url is required")
	}
	if err := validateURL("url", in.URL); err != nil {
		return Webhook{}, err
	}
	if len(in.Filters) > maxFiltersLen {
		return Webhook{}, BadRequest("filters", "filters exceeds 256 characters")
	}
	if err := validateNote("note", in.Note); err != nil {
		return Webhook{}, err
	}
	if err := validateExternalID(in.ExternalID); err != nil {
		return Webhook{}, err
	}

	id, err := t.IssueID(string(PrefixWebhook), in.ID)
	if err != nil {
		return Webhook{}, err
	}
	hook := Webhook{
		ID:          WebhookID(id),
		AltIndex:    in.AltIndex,
		Event:       in.Event,
		URL:         in.URL,
		Signature:   in.Signature,
		Note:        in.Note,
		Active:      true,
		Filters:     in.Filters,
		ExternalID:  in.ExternalID,
		CreatedAtMS: t.nowMS(),
	}
	t.webhooks.Insert(hook.ID, hook)
	t.webhooksByAlt.Upsert(altIndexKey(in.Event, in.AltIndex), func(list *[]WebhookID) {
		*list = append(*list, hook.ID)
	})
	t.webhookList.Append(hook.ID)
	if in.ExternalID != "" {
		t.RebindExternalID("", in.ExternalID, id)
	}
	return hook, nil
}

// UpdateWebhook edits a webhook's URL, note, filters, or active flag.
func (t *Tenant) UpdateWebhook(id WebhookID, url, note, filters *string, active *bool) (Webhook, error) {
	if _, ok := t.webhooks.Get(id); !ok {
		return Webhook{}, NotFound("webhook")
	}
	if url != nil {
		if *url == "" {
			return Webhook{}, BadRequest("url", "url is required")
		}
		if err := validateURL("url", *url); err != nil {
			return Webhook{}, err
		}
	}
	if filters != nil && len(*filters) > maxFiltersLen {
		return Webhook{}, BadRequest("filters", "filters exceeds 256 characters")
	}

	t.webhooks.Update(id, func(h *Webhook) {
		if url != nil {
			h.URL = *url
		}
		if note != nil {
			h.Note = *note
		}
		if filters != nil {
			h.Filters = *filters
		}
		if active != nil {
			h.Active = *active
		}
	})
	updated, _ := t.webhooks.Get(id)
	return updated, nil
}

// DeleteWebhook removes a webhook and its alt-index entry.
func (t *Tenant) DeleteWebhook(id WebhookID) error {
	hook, ok := t.webhooks.Get(id)
	if !ok {
		return NotFound("webhook")
	}
	t.webhooks.Remove(id)
	key := altIndexKey(hook.Event, hook.AltIndex)
	t.webhooksByAlt.Update(key, func(list *[]WebhookID) {
		*list = removeWebhookID(*list, id)
	})
	if ids, ok := t.webhooksByAlt.Get(key); ok && len(ids) == 0 {
		t.webhooksByAlt.Remove(key)
	}
	t.webhookList.Retain(func(w WebhookID) bool { return w != id })
	if hook.ExternalID != "" {
		t.RebindExternalID(hook.ExternalID, "", string(id))
	}
	return nil
}

func altIndexKey(event WebhookEvent, altIndex string) string {
	return string(event) + "#" + altIndex
}

// ActiveWebhooksFor returns the active subscriptions for an event and alt
// index. Hooks registered without an alt index fire for every alt index of
// their event.
func (t *Tenant) ActiveWebhooksFor(event WebhookEvent, altIndex string) []Webhook {
	var out []Webhook
	collect := func(key string) {
		ids, _ := t.webhooksByAlt.Get(key)
		for _, id := range ids {
			if hook, ok := t.webhooks.Get(id); ok && hook.Active {
				out = append(out, hook)
			}
		}
	}
	if altIndex != "" {
		collect(altIndexKey(event, altIndex))
	}
	collect(altIndexKey(event, ""))
	return out
}

// FireWebhooks hands a payload to the dispatcher for each hook. Callers
// invoke it inside the mutation that produced the event, so the hook set
// and payload reflect that mutation's state. Dispatch must not block;
// delivery itself stays asynchronous.
func (t *Tenant) FireWebhooks(ctx context.Context, event WebhookEvent, altIndex string, before, after any, note string) {
	if t.dispatcher == nil {
		return
	}
	hooks := t.ActiveWebhooksFor(event, altIndex)
	if len(hooks) == 0 {
		return
	}
	payload := WebhookPayload{
		Event:       event,
		ResourceID:  altIndex,
		AltIndex:    altIndex,
		Before:      before,
		After:       after,
		Note:        note,
		TimestampNS: t.nowNS(),
	}
	for _, hook := range hooks {
		t.dispatcher.Dispatch(ctx, hook, payload)
	}
}

func removeWebhookID(ids []WebhookID, id WebhookID) []WebhookID {
	out := make([]WebhookID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
