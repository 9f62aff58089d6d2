package filter

/*
Here the Env used in the fleet filter expressions is defined.
Once this struct is fixed, it should not be changed, otherwise filter
expressions in deployed configurations may not compile any more
(f.e. if properties are renamed etc.)
*/

type Env struct {
	Name      string
	Namespace string
	Labels    map[string]string
	State     string
	Progress  int
	LastError string
	HasIssues bool
}
