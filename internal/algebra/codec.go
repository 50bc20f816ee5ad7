package algebra

import "encoding/json"

// wireOperation is the self-describing record from §6:
// { type, position, length?, text?, children? }.
type wireOperation struct {
	Type     string          `json:"type"`
	Position int             `json:"position,omitempty"`
	Length   int             `json:"length,omitempty"`
	Text     string          `json:"text,omitempty"`
	Children []wireOperation `json:"children,omitempty"`

	ID        string `json:"id,omitempty"`
	RelatedID string `json:"relatedId,omitempty"`
	Origin    string `json:"origin,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// MarshalJSON renders o as the self-describing wire record.
func (o Operation) MarshalJSON() ([]byte, error) {
	w, err := toWire(o)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the self-describing wire record. Any structural
// violation (unknown type, missing required field) yields ErrMalformed.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return ErrMalformed
	}
	op, err := fromWire(w)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

func toWire(o Operation) (wireOperation, error) {
	w := wireOperation{
		UserID: o.UserID,
		Origin: o.Origin.String(),
	}
	if !o.ID.IsZero() {
		w.ID = o.ID.String()
	}
	if o.RelatedID != nil {
		w.RelatedID = o.RelatedID.String()
	}

	switch o.Kind {
	case KindInsert:
		w.Type = "insert"
		w.Position = o.Position
		w.Text = o.Text
	case KindDelete:
		w.Type = "delete"
		w.Position = o.Position
		w.Length = o.Length
		w.Text = o.DeletedText
	case KindComposite:
		w.Type = "composite"
		w.Children = make([]wireOperation, len(o.Children))
		for i, c := range o.Children {
			cw, err := toWire(c)
			if err != nil {
				return wireOperation{}, err
			}
			w.Children[i] = cw
		}
	default:
		return wireOperation{}, ErrUnknownKind
	}
	return w, nil
}

func fromWire(w wireOperation) (Operation, error) {
	op := Operation{
		UserID: w.UserID,
		Origin: parseOrigin(w.Origin),
	}
	if w.ID != "" {
		id, err := ParseID(w.ID)
		if err != nil {
			return Operation{}, err
		}
		op.ID = id
	}
	if w.RelatedID != "" {
		id, err := ParseID(w.RelatedID)
		if err != nil {
			return Operation{}, err
		}
		op.RelatedID = &id
	}

	switch w.Type {
	case "insert":
		op.Kind = KindInsert
		op.Position = w.Position
		op.Text = w.Text
	case "delete":
		op.Kind = KindDelete
		op.Position = w.Position
		op.Length = w.Length
		op.DeletedText = w.Text
	case "composite":
		op.Kind = KindComposite
		op.Children = make([]Operation, len(w.Children))
		for i, cw := range w.Children {
			c, err := fromWire(cw)
			if err != nil {
				return Operation{}, err
			}
			op.Children[i] = c
		}
	default:
		return Operation{}, ErrMalformed
	}
	return op, nil
}

func parseOrigin(s string) Origin {
	switch s {
	case "local":
		return OriginLocal
	case "remote":
		return OriginRemote
	case "local_undo":
		return OriginLocalUndo
	case "local_redo":
		return OriginLocalRedo
	case "system":
		return OriginSystem
	default:
		return OriginLocal
	}
}
