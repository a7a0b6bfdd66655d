package strategy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/xmltree"
)

func testRegistry() *model.Registry {
	return model.NewRegistry(
		model.NewType("Document", model.Linkable,
			model.Scalar("Title"),
			model.Scalar("Keywords", model.Multiple()),
			model.Nested("Author", "Person"),
			model.Nested("Contributors", "Contribution", model.Multiple()),
			model.Nested("Notes", "Note", model.Multiple()),
			model.Nested("Parent", "Document"),
		),
		model.NewType("Person", model.Linkable, model.Scalar("Name"), model.Scalar("Email")),
		model.NewType("Note", model.Dependent, model.Scalar("Text")),
		model.NewLinkType("Contribution", "Person", model.Scalar("Role")),
	)
}

func newModel(t *testing.T, reg *model.Registry, name string) *model.Record {
	t.Helper()
	m, err := reg.New(name)
	if err != nil {
		t.Fatalf("failed to build %s: %v", name, err)
	}
	return m.(*model.Record)
}

func childNamed(t *testing.T, el *xmltree.Element, name string) *xmltree.Element {
	t.Helper()
	for _, c := range el.ChildElements() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s child in %s", name, el.Name)
	return nil
}

func newStrategy(t *testing.T, kind Kind, opts ...Option) *Strategy {
	t.Helper()
	s, err := New(kind, NewContext(opts...))
	if err != nil {
		t.Fatalf("failed to build strategy: %v", err)
	}
	return s
}

func entity(t *testing.T, doc *xmltree.Document) *xmltree.Element {
	t.Helper()
	if doc.IsEmpty() {
		t.Fatal("expected a document")
	}
	el := doc.Root.FirstChildElement()
	if el == nil {
		t.Fatal("expected an entity element")
	}
	return el
}

func TestSerialize_ReferenceScenario(t *testing.T) {
	reg := testRegistry()
	person := newModel(t, reg, "Person").MustSet("Name", "Ada").MustSet("Email", "ada@example.com").SetID("5")
	doc := newModel(t, reg, "Document").MustSet("Title", "Hello").MustSet("Author", person)

	s := newStrategy(t, VersionA,
		WithRegistry(reg),
		WithExcludeEmpty(true),
		WithBaseURI("http://x"),
		WithResourceNames(map[string]string{"Person": "persons"}),
	)
	out, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, _ := out.Root.Attr("version"); v != "1.0" {
		t.Errorf("expected version 1.0, got %q", v)
	}
	if v, _ := out.Root.Attr("xmlns:xlink"); v != xmltree.XLinkNamespace {
		t.Errorf("expected xlink declaration, got %q", v)
	}

	el := entity(t, out)
	if v, _ := el.Attr("Title"); v != "Hello" {
		t.Errorf("expected Title attribute Hello, got %q", v)
	}
	author := el.FirstChildElement()
	if author == nil || author.Name != "Author" {
		t.Fatalf("expected Author child, got %+v", author)
	}
	if v, _ := author.Attr("xlink:href"); v != "http://x/persons/5" {
		t.Errorf("expected href http://x/persons/5, got %q", v)
	}
	if v, _ := author.Attr("xlink:type"); v != "simple" {
		t.Errorf("expected xlink:type simple, got %q", v)
	}
	for _, name := range []string{"Name", "Email"} {
		if _, ok := author.Attr(name); ok {
			t.Errorf("expected no %s attribute on reference node", name)
		}
	}
	if len(author.Children) != 0 {
		t.Errorf("expected reference node without children, got %d", len(author.Children))
	}

	want := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Models version="1.0" xmlns:xlink="http://www.w3.org/1999/xlink">` +
		`<Document Title="Hello">` +
		`<Author Id="5" xlink:type="simple" xlink:href="http://x/persons/5"/>` +
		`</Document></Models>`
	if got := out.String(); got != want {
		t.Errorf("unexpected document:\nexpected %s\ngot      %s", want, got)
	}
}

func TestSerialize_LinkReferenceKeepsOwnFields(t *testing.T) {
	reg := testRegistry()
	person := newModel(t, reg, "Person").MustSet("Name", "Ada").SetID("7")
	m, _ := reg.New("Contribution")
	link := m.(*model.LinkRecord)
	link.SetLinked(person)
	link.MustSet("Role", "editor")

	doc := newModel(t, reg, "Document").MustSet("Contributors", []model.Model{link})
	s := newStrategy(t, VersionA,
		WithExcludeEmpty(true),
		WithBaseURI("http://x/"),
		WithResourceNames(map[string]string{"Person": "persons"}),
	)
	out, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := entity(t, out).FirstChildElement()
	if v, _ := node.Attr("xlink:href"); v != "http://x/persons/7" {
		t.Errorf("expected link href to use linked id, got %q", v)
	}
	if v, _ := node.Attr("Role"); v != "editor" {
		t.Errorf("expected Role attribute, got %q", v)
	}
	if _, ok := node.Attr("Name"); ok {
		t.Error("expected tunneled Name to be omitted from reference node")
	}
	if v, _ := node.Attr("Id"); v != "7" {
		t.Errorf("expected Id of linked model, got %q", v)
	}
}

func TestSerialize_ExcludeEmpty(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		title any
		on    bool
		want  bool
	}{
		{name: "A nil suppressed", kind: VersionA, title: nil, on: true, want: false},
		{name: "A blank suppressed", kind: VersionA, title: "   ", on: true, want: false},
		{name: "A empty kept when off", kind: VersionA, title: "", on: false, want: true},
		{name: "B nil suppressed", kind: VersionB, title: nil, on: true, want: false},
		{name: "B nil kept when off", kind: VersionB, title: nil, on: false, want: true},
		{name: "B value kept", kind: VersionB, title: "x", on: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry()
			doc := newModel(t, reg, "Document").MustSet("Title", tt.title)
			s := newStrategy(t, tt.kind, WithExcludeEmpty(tt.on), WithExcludeFields("Keywords", "Author", "Contributors", "Notes", "Parent"))

			out, err := s.Serialize(doc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			el := entity(t, out)

			var got bool
			if tt.kind == VersionA {
				_, got = el.Attr("Title")
			} else {
				got = el.FirstChildElement() != nil && el.FirstChildElement().Name == "Title"
			}
			if got != tt.want {
				t.Errorf("expected Title node present=%v, got %v (%s)", tt.want, got, out)
			}
		})
	}
}

func TestSerialize_NullModelField(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		on   bool
		want bool
	}{
		{name: "A null kept when off", kind: VersionA, on: false, want: true},
		{name: "A null suppressed", kind: VersionA, on: true, want: false},
		{name: "B null kept when off", kind: VersionB, on: false, want: true},
		{name: "B null suppressed", kind: VersionB, on: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry()
			doc := newModel(t, reg, "Document").MustSet("Title", "T").MustSet("Author", nil)
			s := newStrategy(t, tt.kind, WithRegistry(reg), WithExcludeEmpty(tt.on), WithExcludeFields("Title", "Keywords", "Contributors", "Notes", "Parent"))

			out, err := s.Serialize(doc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			children := entity(t, out).ChildElements()
			got := len(children) == 1 && children[0].Name == "Author"
			if got != tt.want {
				t.Fatalf("expected Author node present=%v, got %v (%s)", tt.want, got, out)
			}
			if !got {
				return
			}
			if len(children[0].Attrs) != 0 || len(children[0].Children) != 0 {
				t.Errorf("expected empty Author node, got %+v", children[0])
			}

			back, err := s.Deserialize(context.Background(), out)
			if err != nil {
				t.Fatalf("unexpected error reading back: %v", err)
			}
			author, _ := back.Field("Author")
			if v := author.Value(); v != nil {
				t.Errorf("expected nil Author after reading back, got %v", v)
			}
		})
	}
}

func TestSerialize_EmptyListSuppressed(t *testing.T) {
	reg := testRegistry()
	doc := newModel(t, reg, "Document").MustSet("Notes", []model.Model{})

	out, err := newStrategy(t, VersionA, WithExcludeEmpty(true)).Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(entity(t, out).ChildElements()); n != 0 {
		t.Errorf("expected no child nodes, got %d", n)
	}

	out, err = newStrategy(t, VersionA).Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := entity(t, out).Attr("Keywords"); !ok {
		t.Error("expected empty Keywords attribute when suppression is off")
	}
}

func TestSerialize_FieldOrderAndExclusion(t *testing.T) {
	reg := testRegistry()
	doc := newModel(t, reg, "Document").
		MustSet("Title", "T").
		MustSet("Keywords", []string{"a", "b"})

	out, err := newStrategy(t, VersionB, WithExcludeFields("Title"), WithExcludeEmpty(true)).Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names, texts []string
	for _, c := range entity(t, out).ChildElements() {
		names = append(names, c.Name)
		texts = append(texts, c.Text())
	}
	if !reflect.DeepEqual(names, []string{"Keywords", "Keywords"}) {
		t.Errorf("expected one element per keyword, got %v", names)
	}
	if !reflect.DeepEqual(texts, []string{"a", "b"}) {
		t.Errorf("expected texts [a b], got %v", texts)
	}
}

func TestSerialize_VersionA_Scalars(t *testing.T) {
	reg := testRegistry()
	doc := newModel(t, reg, "Document").
		MustSet("Title", "bell\x07tab\tend").
		MustSet("Keywords", []string{"x", "y", "z"})

	out, err := newStrategy(t, VersionA, WithExcludeEmpty(true)).Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	el := entity(t, out)
	if v, _ := el.Attr("Keywords"); v != "x,y,z" {
		t.Errorf("expected joined keywords, got %q", v)
	}
	if v, _ := el.Attr("Title"); v != "bell\uFFFDtab\tend" {
		t.Errorf("expected control character replaced, got %q", v)
	}
}

func TestSerialize_IdentityAttribute(t *testing.T) {
	reg := testRegistry()
	tests := []struct {
		name   string
		id     []string
		wantID string
		hasID  bool
	}{
		{name: "persisted", id: []string{"9"}, wantID: "9", hasID: true},
		{name: "composite", id: []string{"9", "1"}},
		{name: "unpersisted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			person := newModel(t, reg, "Person").MustSet("Name", "Ada").SetID(tt.id...)
			doc := newModel(t, reg, "Document").MustSet("Author", person)

			out, err := newStrategy(t, VersionA, WithExcludeEmpty(true)).Serialize(doc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			author := entity(t, out).FirstChildElement()
			v, ok := author.Attr("Id")
			if ok != tt.hasID || v != tt.wantID {
				t.Errorf("expected Id=%q present=%v, got %q present=%v", tt.wantID, tt.hasID, v, ok)
			}
			if got, _ := author.Attr("Name"); got != "Ada" {
				t.Errorf("expected embedded Name, got %q", got)
			}

			outB, err := newStrategy(t, VersionB, WithExcludeEmpty(true)).Serialize(doc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := entity(t, outB).FirstChildElement().Attr("Id"); ok {
				t.Error("expected no identity attribute in version B")
			}
		})
	}
}

func TestSerialize_NilOccurrence(t *testing.T) {
	reg := testRegistry()
	note := newModel(t, reg, "Note").MustSet("Text", "n")
	doc := newModel(t, reg, "Document").MustSet("Notes", []any{nil, note})

	out, err := newStrategy(t, VersionA, WithExcludeEmpty(true)).Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notes := entity(t, out).ChildElements()
	if len(notes) != 2 {
		t.Fatalf("expected 2 Notes nodes, got %d", len(notes))
	}
	if len(notes[0].Attrs) != 0 || len(notes[0].Children) != 0 {
		t.Errorf("expected empty node for nil occurrence, got %+v", notes[0])
	}
}

func TestSerialize_CycleGuard(t *testing.T) {
	reg := testRegistry()
	doc := newModel(t, reg, "Document").MustSet("Title", "self")
	doc.MustSet("Parent", doc)

	_, err := newStrategy(t, VersionA).Serialize(doc)
	if !errors.Is(err, ErrCyclicModel) {
		t.Fatalf("expected ErrCyclicModel, got %v", err)
	}

	doc.SetID("1")
	s := newStrategy(t, VersionA, WithBaseURI("http://x"), WithResourceNames(map[string]string{"Document": "documents"}))
	out, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("expected reference to break the cycle, got %v", err)
	}
	parent := childNamed(t, entity(t, out), "Parent")
	if v, _ := parent.Attr("xlink:href"); v != "http://x/documents/1" {
		t.Errorf("expected self reference, got %q", v)
	}
}

func TestSerialize_SharedValueIsNotACycle(t *testing.T) {
	reg := testRegistry()
	note := newModel(t, reg, "Note").MustSet("Text", "same")
	doc := newModel(t, reg, "Document").MustSet("Notes", []model.Model{note, note})

	if _, err := newStrategy(t, VersionA).Serialize(doc); err != nil {
		t.Fatalf("expected siblings sharing a value to serialize, got %v", err)
	}
}

func TestSerialize_NoModel(t *testing.T) {
	_, err := newStrategy(t, VersionA).Serialize(nil)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
}

func TestRoundTrip_VersionA(t *testing.T) {
	reg := testRegistry()
	author := newModel(t, reg, "Person").MustSet("Name", "Ada").MustSet("Email", "ada@example.com")
	doc := newModel(t, reg, "Document").
		MustSet("Title", "Hello <world> & \"friends\"").
		MustSet("Keywords", []string{"go", "xml"}).
		MustSet("Author", author).
		MustSet("Notes", []model.Model{
			newModel(t, reg, "Note").MustSet("Text", "first"),
			newModel(t, reg, "Note").MustSet("Text", "second"),
		})

	s := newStrategy(t, VersionA, WithRegistry(reg), WithExcludeEmpty(true))
	tree, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := xmltree.ParseString(tree.String())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	back, err := s.Deserialize(context.Background(), parsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertField(t, back, "Title", "Hello <world> & \"friends\"")
	kw, _ := back.Field("Keywords")
	if !reflect.DeepEqual(kw.Values(), []any{"go", "xml"}) {
		t.Errorf("expected keywords [go xml], got %v", kw.Values())
	}
	a, _ := back.Field("Author")
	assertField(t, a.Value().(model.Model), "Name", "Ada")
	assertField(t, a.Value().(model.Model), "Email", "ada@example.com")
	notes, _ := back.Field("Notes")
	if got := notes.Models(); len(got) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(got))
	} else {
		assertField(t, got[0], "Text", "first")
		assertField(t, got[1], "Text", "second")
	}
}

func TestRoundTrip_VersionB(t *testing.T) {
	reg := testRegistry()
	doc := newModel(t, reg, "Document").
		MustSet("Title", "Hello").
		MustSet("Keywords", []string{"a,b", "c"}).
		MustSet("Notes", []model.Model{newModel(t, reg, "Note").MustSet("Text", "n")})

	s := newStrategy(t, VersionB, WithRegistry(reg), WithExcludeEmpty(true))
	tree, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := s.Deserialize(context.Background(), tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertField(t, back, "Title", "Hello")
	kw, _ := back.Field("Keywords")
	if !reflect.DeepEqual(kw.Values(), []any{"a,b", "c"}) {
		t.Errorf("expected element-per-value keywords, got %v", kw.Values())
	}
}

func TestDeserialize_UnknownChildVersusAttribute(t *testing.T) {
	reg := testRegistry()
	s := newStrategy(t, VersionA, WithRegistry(reg))

	lenient := `<Models version="1.0"><Document Title="T" Bogus="x"/></Models>`
	m, err := s.Deserialize(context.Background(), mustParse(t, lenient))
	if err != nil {
		t.Fatalf("expected unknown attribute to be dropped, got %v", err)
	}
	assertField(t, m, "Title", "T")

	strict := `<Models version="1.0"><Document Title="T" Bogus="x"><Bogus/></Document></Models>`
	_, err = s.Deserialize(context.Background(), mustParse(t, strict))
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}

	strictB := `<Models version="2.0"><Document><Bogus>x</Bogus></Document></Models>`
	_, err = newStrategy(t, VersionB, WithRegistry(reg)).Deserialize(context.Background(), mustParse(t, strictB))
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for version B, got %v", err)
	}
}

func TestDeserialize_Errors(t *testing.T) {
	reg := testRegistry()
	tests := []struct {
		name    string
		kind    Kind
		input   string
		wantErr error
	}{
		{name: "unknown type", kind: VersionA, input: `<Models version="1.0"><Widget/></Models>`, wantErr: ErrModelResolution},
		{name: "version mismatch", kind: VersionA, input: `<Models version="2.0"><Document/></Models>`, wantErr: ErrMalformedInput},
		{name: "missing version", kind: VersionB, input: `<Models><Document/></Models>`, wantErr: ErrMalformedInput},
		{name: "wrong root", kind: VersionA, input: `<Other version="1.0"><Document/></Other>`, wantErr: ErrMalformedInput},
		{name: "no entity", kind: VersionA, input: `<Models version="1.0"/>`, wantErr: ErrMalformedInput},
		{name: "unresolvable reference", kind: VersionA, input: `<Models version="1.0" xmlns:xlink="http://www.w3.org/1999/xlink"><Document><Author xlink:href="http://x/persons/1"/></Document></Models>`, wantErr: ErrReferenceResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStrategy(t, tt.kind, WithRegistry(reg), WithResolver(NewMapResolver()))
			_, err := s.Deserialize(context.Background(), mustParse(t, tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDeserialize_ResolvesReferences(t *testing.T) {
	reg := testRegistry()
	person := newModel(t, reg, "Person").MustSet("Name", "Ada").SetID("5")
	ctxOpts := []Option{
		WithRegistry(reg),
		WithBaseURI("http://x"),
		WithResourceNames(map[string]string{"Person": "persons"}),
	}
	resolver := NewMapResolver()
	resolver.Register(NewContext(ctxOpts...), person)
	s := newStrategy(t, VersionA, append(ctxOpts, WithResolver(resolver))...)

	input := `<Models version="1.0" xmlns:xlink="http://www.w3.org/1999/xlink">` +
		`<Document Title="T">` +
		`<Author xlink:type="simple" xlink:href="http://x/persons/5"/>` +
		`<Contributors Id="5" xlink:type="simple" xlink:href="http://x/persons/5" Role="editor" Name="ignored"/>` +
		`</Document></Models>`
	m, err := s.Deserialize(context.Background(), mustParse(t, input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	author, _ := m.Field("Author")
	if author.Value() != model.Model(person) {
		t.Errorf("expected resolved person, got %v", author.Value())
	}

	contributors, _ := m.Field("Contributors")
	links := contributors.Models()
	if len(links) != 1 {
		t.Fatalf("expected one contributor, got %d", len(links))
	}
	l, ok := model.AsLink(links[0])
	if !ok {
		t.Fatalf("expected a link, got %T", links[0])
	}
	if l.Linked() != model.Model(person) {
		t.Error("expected link to wrap the resolved person")
	}
	assertField(t, l, "Role", "editor")
	assertField(t, person, "Name", "Ada")
}

func TestUpdateFromTree(t *testing.T) {
	reg := testRegistry()
	first := newModel(t, reg, "Note").MustSet("Text", "old-1")
	second := newModel(t, reg, "Note").MustSet("Text", "old-2")
	doc := newModel(t, reg, "Document").
		MustSet("Title", "Old").
		MustSet("Keywords", []string{"keep"}).
		MustSet("Notes", []model.Model{first, second})

	input := `<Models version="1.0"><Document Title="New" Unknown="x">` +
		`<Notes Text="new-1"/><Notes Text="new-2"/><Notes Text="new-3"/>` +
		`</Document></Models>`

	s := newStrategy(t, VersionA, WithRegistry(reg))
	got, err := s.UpdateFromTree(context.Background(), mustParse(t, input), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != model.Model(doc) {
		t.Fatal("expected the bound model to be updated in place")
	}
	assertField(t, doc, "Title", "New")
	kw, _ := doc.Field("Keywords")
	if !reflect.DeepEqual(kw.Values(), []any{"keep"}) {
		t.Errorf("expected untouched keywords, got %v", kw.Values())
	}

	notes, _ := doc.Field("Notes")
	ms := notes.Models()
	if len(ms) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(ms))
	}
	if ms[0] != model.Model(first) || ms[1] != model.Model(second) {
		t.Error("expected existing notes to be reused by position")
	}
	for i, want := range []string{"new-1", "new-2", "new-3"} {
		assertField(t, ms[i], "Text", want)
	}
}

func TestUpdateFromTree_Errors(t *testing.T) {
	reg := testRegistry()
	input := `<Models version="1.0"><Document Title="x"/></Models>`

	_, err := newStrategy(t, VersionA, WithRegistry(reg)).UpdateFromTree(context.Background(), mustParse(t, input), nil)
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}

	inputB := `<Models version="2.0"><Document/></Models>`
	_, err = newStrategy(t, VersionB, WithRegistry(reg)).UpdateFromTree(context.Background(), mustParse(t, inputB), newModel(t, reg, "Document"))
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestUpdateFromTree_TopLevelReference(t *testing.T) {
	reg := testRegistry()
	stored := newModel(t, reg, "Document").MustSet("Title", "stored")
	resolver := NewMapResolver().Add("http://x/documents/3", stored)
	s := newStrategy(t, VersionA, WithRegistry(reg), WithResolver(resolver))

	input := `<Models version="1.0" xmlns:xlink="http://www.w3.org/1999/xlink">` +
		`<Document xlink:href="http://x/documents/3" Title="changed"/></Models>`
	got, err := s.UpdateFromTree(context.Background(), mustParse(t, input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != model.Model(stored) {
		t.Fatal("expected resolver-supplied model")
	}
	assertField(t, stored, "Title", "changed")
}

func TestContext_Immutable(t *testing.T) {
	base := NewContext(WithExcludeFields("A"), WithResourceNames(map[string]string{"Person": "persons"}))
	derived := base.With(WithExcludeFields("B"), WithResourceNames(map[string]string{"Person": "people"}))

	if base.IsExcluded("B") {
		t.Error("expected derived option to leave base untouched")
	}
	if name, _ := base.ResourceName("Person"); name != "persons" {
		t.Errorf("expected base resource persons, got %q", name)
	}
	if name, _ := derived.ResourceName("Person"); name != "people" {
		t.Errorf("expected derived resource people, got %q", name)
	}

	names := base.ResourceNames()
	names["Person"] = "mutated"
	if name, _ := base.ResourceName("Person"); name != "persons" {
		t.Error("expected ResourceNames to return a copy")
	}
	if base.RootName() != DefaultRootName {
		t.Errorf("expected default root name, got %q", base.RootName())
	}
}

func TestLoaderResolver(t *testing.T) {
	var gotResource string
	var gotID model.ID
	r := NewLoaderResolver("http://x/", LoaderFunc(func(_ context.Context, resource string, id model.ID) (model.Model, error) {
		gotResource, gotID = resource, id
		return nil, nil
	}))

	if _, err := r.Resolve(context.Background(), "http://x/persons/4,2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotResource != "persons" || !reflect.DeepEqual(gotID, model.ID{"4", "2"}) {
		t.Errorf("expected persons [4 2], got %s %v", gotResource, gotID)
	}

	for _, bad := range []string{"http://y/persons/1", "http://x/persons", "http://x/a/b/c"} {
		if _, err := r.Resolve(context.Background(), bad); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"1": VersionA, "1.0": VersionA, "2.0": VersionB, " 2 ": VersionB} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("3"); err == nil {
		t.Error("expected error for unknown version")
	}
	if _, err := New(Kind(9), nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func mustParse(t *testing.T, s string) *xmltree.Document {
	t.Helper()
	doc, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", s, err)
	}
	return doc
}

func assertField(t *testing.T, m model.Model, name string, want any) {
	t.Helper()
	f, ok := m.Field(name)
	if !ok {
		t.Fatalf("expected field %s on %s", name, m.TypeName())
	}
	if got := f.Value(); got != want {
		t.Errorf("expected %s=%v, got %v", name, want, got)
	}
}
