package model

// TagKind is the canonical kind of a documentation tag. Aliases such as
// @return/@result or @sa are folded into one kind by the comment parser.
type TagKind string

const (
	TagBrief      TagKind = "brief"
	TagParam      TagKind = "param"
	TagReturns    TagKind = "returns"
	TagRetval     TagKind = "retval"
	TagSee        TagKind = "see"
	TagRef        TagKind = "ref"
	TagSince      TagKind = "since"
	TagDeprecated TagKind = "deprecated"
	TagInternal   TagKind = "internal"
	TagNote       TagKind = "note"
	TagWarning    TagKind = "warning"
	TagTodo       TagKind = "todo"
	TagBug        TagKind = "bug"
	TagError      TagKind = "error"
	TagCopydoc    TagKind = "copydoc"
	TagIngroup    TagKind = "ingroup"
	TagDefgroup   TagKind = "defgroup"
	TagPage       TagKind = "page"
	TagMainpage   TagKind = "mainpage"
	TagFile       TagKind = "file"
	TagImage      TagKind = "image"
	TagInclude    TagKind = "include"
	TagSnippet    TagKind = "snippet"
	TagExample    TagKind = "example"
	TagAuthor     TagKind = "author"
	TagVersion    TagKind = "version"
	TagPre        TagKind = "pre"
	TagPost       TagKind = "post"
	TagExtension  TagKind = "extension"
)

// Tag is one occurrence of a tag inside a doc comment. Which fields are
// populated depends on Kind:
//
//	param            Direction, Arg (parameter name), Text
//	error, retval    Arg (code or value), Text
//	see, ref,
//	copydoc, ingroup Arg (symbol or group name)
//	defgroup, page   Arg (identifier), Text (title)
//	image            Format, Path, Caption
//	include          Path
//	snippet          Path, Fragment
//	example          Path (optional), Text (verbatim code)
//	extension        Name (as written), Text
//
// Every other kind carries free Text.
type Tag struct {
	Kind      TagKind
	Name      string
	Arg       string
	Direction string
	Text      string
	Path      string
	Fragment  string
	Caption   string
	Format    string
	Line      int // 0-based line within the comment
}

// DocComment is the structured content of one /** ... */ block.
type DocComment struct {
	Brief      string
	Detailed   []string
	Tags       map[TagKind][]Tag
	CopiedFrom string
}

// NewDocComment returns an empty DocComment ready for tags.
func NewDocComment() *DocComment {
	return &DocComment{Tags: make(map[TagKind][]Tag)}
}

// Add appends a tag occurrence.
func (d *DocComment) Add(t Tag) {
	if d.Tags == nil {
		d.Tags = make(map[TagKind][]Tag)
	}
	d.Tags[t.Kind] = append(d.Tags[t.Kind], t)
}

// Has reports whether at least one tag of kind k is present.
func (d *DocComment) Has(k TagKind) bool {
	return d != nil && len(d.Tags[k]) > 0
}

// First returns the first tag of kind k.
func (d *DocComment) First(k TagKind) (Tag, bool) {
	if d == nil || len(d.Tags[k]) == 0 {
		return Tag{}, false
	}
	return d.Tags[k][0], true
}

// All returns every tag of kind k in source order.
func (d *DocComment) All(k TagKind) []Tag {
	if d == nil {
		return nil
	}
	return d.Tags[k]
}

// Empty reports whether the comment carries no prose and no tags.
func (d *DocComment) Empty() bool {
	if d == nil {
		return true
	}
	if d.Brief != "" || len(d.Detailed) > 0 {
		return false
	}
	for _, tags := range d.Tags {
		if len(tags) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (d *DocComment) Clone() *DocComment {
	if d == nil {
		return nil
	}
	c := &DocComment{
		Brief:      d.Brief,
		Detailed:   append([]string(nil), d.Detailed...),
		Tags:       make(map[TagKind][]Tag, len(d.Tags)),
		CopiedFrom: d.CopiedFrom,
	}
	for k, tags := range d.Tags {
		c.Tags[k] = append([]Tag(nil), tags...)
	}
	return c
}
