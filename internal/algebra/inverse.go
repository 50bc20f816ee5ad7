package algebra

// Inverse returns the operation that undoes o. For a Delete, o must
// already have DeletedText populated (i.e. it has been through
// Document.Apply at least once) — otherwise Inverse returns
// ErrMissingDeletedText. The returned operation carries no ID or
// RelatedID of its own; callers (History, the Document Controller)
// assign those when they push the inverse onto a stack or broadcast it.
func (o Operation) Inverse() (Operation, error) {
	switch o.Kind {
	case KindInsert:
		return Operation{
			Kind:        KindDelete,
			Position:    o.Position,
			Length:      len([]byte(o.Text)),
			DeletedText: o.Text,
		}, nil

	case KindDelete:
		if o.DeletedText == "" && o.Length > 0 {
			return Operation{}, ErrMissingDeletedText
		}
		return Operation{
			Kind:     KindInsert,
			Position: o.Position,
			Text:     o.DeletedText,
		}, nil

	case KindComposite:
		children := make([]Operation, len(o.Children))
		for i, c := range o.Children {
			inv, err := c.Inverse()
			if err != nil {
				return Operation{}, err
			}
			children[len(o.Children)-1-i] = inv
		}
		return Operation{Kind: KindComposite, Children: children}, nil

	default:
		return Operation{}, ErrUnknownKind
	}
}
