package miditok

type (
	// VocabField is the ordered label space of one compound-token sub-field.
	// Labels are stored in their external "Type_Value" spelling. Growth is
	// append-only: an index, once assigned, never changes meaning.
	VocabField struct {
		Name   string
		Labels []string
		index  map[string]int
	}

	// Vocabulary is the list of sub-field vocabularies of one tokenizer.
	// It is built when the tokenizer is constructed and only ever grows
	// through Add. If a tokenizer is shared between goroutines the caller
	// must serialize encode calls, as encoding open-ended fields (bar
	// position encodings) may append; there is no internal locking.
	Vocabulary struct {
		Fields []VocabField
	}
)

func newVocabField(name string) VocabField {
	return VocabField{Name: name, index: map[string]int{}}
}

// Add appends the label to the field if it is not present yet and returns
// its index.
func (f *VocabField) Add(label string) int {
	if i, ok := f.index[label]; ok {
		return i
	}
	i := len(f.Labels)
	f.Labels = append(f.Labels, label)
	f.index[label] = i
	return i
}

// IndexOf returns the index of a label, or -1 if the field does not contain
// it.
func (f *VocabField) IndexOf(label string) int {
	if i, ok := f.index[label]; ok {
		return i
	}
	return -1
}

func (f *VocabField) Len() int {
	return len(f.Labels)
}

// Add appends the label to the numbered field and returns its index.
func (v *Vocabulary) Add(field int, label string) int {
	return v.Fields[field].Add(label)
}

func (v *Vocabulary) addField(name string, labels ...string) *VocabField {
	f := newVocabField(name)
	for _, l := range labels {
		f.Add(l)
	}
	v.Fields = append(v.Fields, f)
	return &v.Fields[len(v.Fields)-1]
}

// Sizes returns the label count per field.
func (v *Vocabulary) Sizes() []int {
	ret := make([]int, len(v.Fields))
	for i := range v.Fields {
		ret[i] = v.Fields[i].Len()
	}
	return ret
}
