package models

import "encoding/json"

// Settings is the room configuration bag. Well-known fields are typed;
// anything else a client sends rides along in Extra so older servers never
// drop keys they don't understand. On the wire it is a single flat JSON
// object.
type Settings struct {
	// Diagram is the current diagram source text.
	Diagram *string

	// DiagramType names the notation the diagram is written in.
	DiagramType *string

	// Theme is the client rendering theme.
	Theme *string

	// Extra holds unrecognized keys verbatim.
	Extra map[string]json.RawMessage
}

// knownSettingKeys are the field names lifted out of the flat object.
var knownSettingKeys = map[string]bool{
	"diagram":     true,
	"diagramType": true,
	"theme":       true,
}

// MarshalJSON flattens typed fields and Extra into one object.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	if err := putString(out, "diagram", s.Diagram); err != nil {
		return nil, err
	}
	if err := putString(out, "diagramType", s.DiagramType); err != nil {
		return nil, err
	}
	if err := putString(out, "theme", s.Theme); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a flat object, lifting known keys into typed fields.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings{}
	for k, v := range raw {
		switch k {
		case "diagram":
			if err := json.Unmarshal(v, &s.Diagram); err != nil {
				return err
			}
		case "diagramType":
			if err := json.Unmarshal(v, &s.DiagramType); err != nil {
				return err
			}
		case "theme":
			if err := json.Unmarshal(v, &s.Theme); err != nil {
				return err
			}
		default:
			if s.Extra == nil {
				s.Extra = map[string]json.RawMessage{}
			}
			s.Extra[k] = v
		}
	}
	return nil
}

// Merge applies patch on top of s, shallow: fields and Extra keys present in
// patch overwrite, everything else in s is preserved. The receiver is not
// modified.
func (s Settings) Merge(patch Settings) Settings {
	out := s.Clone()
	if patch.Diagram != nil {
		out.Diagram = strptr(*patch.Diagram)
	}
	if patch.DiagramType != nil {
		out.DiagramType = strptr(*patch.DiagramType)
	}
	if patch.Theme != nil {
		out.Theme = strptr(*patch.Theme)
	}
	for k, v := range patch.Extra {
		if out.Extra == nil {
			out.Extra = map[string]json.RawMessage{}
		}
		out.Extra[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := Settings{}
	if s.Diagram != nil {
		out.Diagram = strptr(*s.Diagram)
	}
	if s.DiagramType != nil {
		out.DiagramType = strptr(*s.DiagramType)
	}
	if s.Theme != nil {
		out.Theme = strptr(*s.Theme)
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func putString(m map[string]json.RawMessage, key string, v *string) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(*v)
	if err != nil {
		return err
	}
	m[key] = b
	return nil
}

func strptr(s string) *string { return &s }
