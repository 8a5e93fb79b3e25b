package job

// Link is a directed dependency edge from a subject job (the puller) to an
// object job (the pulled-in job).
type Link struct {
	Subject *Job
	Object  *Job

	// Matters gates whether this link participates in "matters-to-anchor"
	// propagation and in the delete cascade.
	Matters bool
	// Conflicts marks a "conflicted-by" pull: the subject's existence
	// forces the object (always a STOP job) to exist.
	Conflicts bool
}

// NewLink constructs a link and threads it into both endpoints' lists.
func NewLink(subject, object *Job, matters, conflicts bool) *Link {
	l := &Link{Subject: subject, Object: object, Matters: matters, Conflicts: conflicts}
	subject.SubjectList = append(subject.SubjectList, l)
	object.ObjectList = append(object.ObjectList, l)
	return l
}

// Free removes the link from both endpoints' lists. There is no other
// mutation API for links.
func (l *Link) Free() {
	l.Subject.SubjectList = removeLink(l.Subject.SubjectList, l)
	l.Object.ObjectList = removeLink(l.Object.ObjectList, l)
}

func removeLink(list []*Link, target *Link) []*Link {
	for i, l := range list {
		if l == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
