package algebra

// Transform returns o rebased against an operation that was applied
// concurrently (against the same base document). It implements the
// transform tables exactly as laid out by the convergence engine:
// Insert/Insert uses the author-id tie-break, Insert/Delete and
// Delete/Insert shift positions across the other's span, and
// Delete/Delete handles the five overlap cases with deletedText kept
// in sync with the surviving span.
func (o Operation) Transform(against Operation) (Operation, error) {
	if against.Kind == KindComposite {
		cur := o
		for _, child := range against.Children {
			var err error
			cur, err = cur.Transform(child)
			if err != nil {
				return Operation{}, err
			}
		}
		return cur, nil
	}

	if o.Kind == KindComposite {
		children, err := transformChildren(o.Children, against)
		if err != nil {
			return Operation{}, err
		}
		result := o
		result.Children = children
		return result, nil
	}

	switch {
	case o.Kind == KindInsert && against.Kind == KindInsert:
		return transformInsertInsert(o, against), nil
	case o.Kind == KindInsert && against.Kind == KindDelete:
		return transformInsertDelete(o, against), nil
	case o.Kind == KindDelete && against.Kind == KindInsert:
		return transformDeleteInsert(o, against), nil
	case o.Kind == KindDelete && against.Kind == KindDelete:
		return transformDeleteDelete(o, against), nil
	default:
		return Operation{}, ErrUnknownKind
	}
}

// transformChildren rebases a Composite's children against a single
// leaf operation. Each child is transformed against the running copy
// of `against`, and `against` itself is transformed forward through
// the *original* child so later children see its cumulative effect —
// this is what §4.1 means by folding side effects through the sequence.
func transformChildren(children []Operation, against Operation) ([]Operation, error) {
	out := make([]Operation, 0, len(children))
	cur := against

	for _, child := range children {
		childPrime, err := child.Transform(cur)
		if err != nil {
			return nil, err
		}
		curPrime, err := cur.Transform(child)
		if err != nil {
			return nil, err
		}
		out = append(out, childPrime)
		cur = curPrime
	}
	return out, nil
}

// transformInsertInsert rebases insert i1 against concurrent insert i2.
func transformInsertInsert(i1, i2 Operation) Operation {
	if i2.Position < i1.Position || (i2.Position == i1.Position && i2.UserID < i1.UserID) {
		result := i1
		result.Position = i1.Position + len(i2.Text)
		return result
	}
	return i1
}

// transformInsertDelete rebases insert i against concurrent delete d.
func transformInsertDelete(i, d Operation) Operation {
	result := i
	switch {
	case d.end() <= i.Position:
		result.Position = i.Position - d.Length
	case d.Position >= i.Position:
		// unchanged
	default:
		// delete straddles the insert point: relocate to the start of
		// the deletion span (§9 pairs this with transformDeleteInsert
		// growing the delete over the inserted text).
		result.Position = d.Position
	}
	return result
}

// transformDeleteInsert rebases delete d against concurrent insert i.
func transformDeleteInsert(d, i Operation) Operation {
	result := d
	switch {
	case i.Position <= d.Position:
		result.Position = d.Position + len(i.Text)
	case d.Position < i.Position && i.Position < d.end():
		// grow the deletion to swallow the inserted text.
		result.Length = d.Length + len(i.Text)
	default:
		// unchanged
	}
	return result
}

// transformDeleteDelete rebases delete d1 against concurrent delete d2,
// handling the five overlap cases from §4.1 and truncating deletedText
// to match the surviving span so inverse() stays exact.
func transformDeleteDelete(d1, d2 Operation) Operation {
	e1, e2 := d1.end(), d2.end()

	switch {
	case e2 <= d1.Position:
		// case 1: d2 entirely precedes d1.
		result := d1
		result.Position = d1.Position - d2.Length
		return result

	case d2.Position <= d1.Position && e2 >= e1:
		// case 2: d1 entirely subsumed by d2 — becomes a no-op but stays
		// present so inverses remain aligned.
		result := d1
		result.Position = d2.Position
		result.Length = 0
		result.DeletedText = ""
		return result

	case d2.Position <= d1.Position && e2 < e1 && e2 > d1.Position:
		// case 3: d2 overlaps d1's head; surviving suffix remains.
		result := d1
		survivingLen := e1 - e2
		result.Position = d2.Position
		result.Length = survivingLen
		result.DeletedText = suffixOf(d1.DeletedText, survivingLen)
		return result

	case d1.Position < d2.Position && e1 <= e2 && d2.Position < e1:
		// case 4: d2 overlaps d1's tail; surviving prefix remains.
		result := d1
		survivingLen := d2.Position - d1.Position
		result.Length = survivingLen
		result.DeletedText = prefixOf(d1.DeletedText, survivingLen)
		return result

	case d1.Position < d2.Position && e2 < e1:
		// case 5: d2 is strictly contained within d1; remove the middle.
		result := d1
		result.Length = d1.Length - d2.Length
		result.DeletedText = removeMiddle(d1.DeletedText, d2.Position-d1.Position, d2.Length)
		return result

	default:
		// d2 at or beyond d1's end, no overlap.
		return d1
	}
}

func prefixOf(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func suffixOf(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n > len(s) {
		n = len(s)
	}
	return s[len(s)-n:]
}

func removeMiddle(s string, offset, length int) string {
	if offset < 0 || offset > len(s) {
		return s
	}
	end := offset + length
	if end > len(s) {
		end = len(s)
	}
	return s[:offset] + s[end:]
}
