package reconcile

// Contact is a company contact. Email is the identity key: contacts are
// matched across systems solely by email, and a changed email manifests as a
// delete of the old contact plus an add of the new one, never an update.
type Contact struct {
	LastName  string
	FirstName string
	Email     string
	Phone     string
	Position  string
}

// Changed reports whether any non-identity field differs between two
// contacts matched by email.
func (c Contact) Changed(other Contact) bool {
	return c.LastName != other.LastName ||
		c.FirstName != other.FirstName ||
		c.Phone != other.Phone ||
		c.Position != other.Position
}

// CRMContact is a contact record already present in the CRM.
type CRMContact struct {
	ID      int64
	Contact Contact
}

// ContactMatch pairs an incoming contact with the CRM record it matched
// by email.
type ContactMatch struct {
	ID       int64
	Incoming Contact
	Existing Contact
}

// ContactDiff partitions a contact sync into add/update/delete sets. The
// three sets are a disjoint cover by email: every incoming contact appears in
// exactly one of ToAdd or ToUpdate, and every existing contact whose email is
// absent from the incoming list appears in ToDelete.
type ContactDiff struct {
	ToAdd    []Contact
	ToUpdate []ContactMatch
	ToDelete []CRMContact
}

// IsEmpty reports whether the diff contains no operations.
func (d ContactDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// DiffContacts diffs the CRM's contact list against the incoming one, keyed
// by email. A matched email always lands in ToUpdate even when no field
// differs; callers that care about idempotent no-ops filter with Changed.
func DiffContacts(existing []CRMContact, incoming []Contact) ContactDiff {
	byEmail := make(map[string]CRMContact, len(existing))
	for _, e := range existing {
		if _, ok := byEmail[e.Contact.Email]; !ok {
			byEmail[e.Contact.Email] = e
		}
	}
	seen := make(map[string]bool, len(incoming))

	var diff ContactDiff
	for _, in := range incoming {
		if seen[in.Email] {
			continue
		}
		seen[in.Email] = true
		if e, ok := byEmail[in.Email]; ok {
			diff.ToUpdate = append(diff.ToUpdate, ContactMatch{ID: e.ID, Incoming: in, Existing: e.Contact})
		} else {
			diff.ToAdd = append(diff.ToAdd, in)
		}
	}
	for _, e := range existing {
		if !seen[e.Contact.Email] {
			diff.ToDelete = append(diff.ToDelete, e)
		}
	}
	return diff
}
