package warehouse

import (
	"fmt"
	"regexp"
	"strings"
)

// All identifiers spliced into SQL text go through this file. Values are always
// passed as query parameters.

var (
	projectPattern = regexp.MustCompile(`^([a-z0-9\-.]+:)?[a-z][a-z0-9\-]{4,28}[a-z0-9]$`)
	namePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,299}$`)
	typePattern    = regexp.MustCompile(`^[A-Z][A-Z0-9_]*(<[A-Z0-9_<>, ]+>)?(\([0-9, ]+\))?$`)
)

// ValidateName checks a dataset, table or column name
func ValidateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// ValidateProject checks a project id, including domain-scoped ids
func ValidateProject(project string) error {
	if !projectPattern.MatchString(project) {
		return fmt.Errorf("invalid project id %q", project)
	}
	return nil
}

// QuoteName returns a backtick-quoted, validated identifier
func QuoteName(kind, name string) (string, error) {
	if err := ValidateName(kind, name); err != nil {
		return "", err
	}
	return "`" + name + "`", nil
}

// QualifiedTable returns `project.dataset.table`
func QualifiedTable(project, dataset, table string) (string, error) {
	if err := ValidateProject(project); err != nil {
		return "", err
	}
	if err := ValidateName("dataset", dataset); err != nil {
		return "", err
	}
	if err := ValidateName("table", table); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table), nil
}

// QualifiedInformationSchema returns `project.dataset.INFORMATION_SCHEMA.view`
func QualifiedInformationSchema(project, dataset, view string) (string, error) {
	if err := ValidateProject(project); err != nil {
		return "", err
	}
	if err := ValidateName("dataset", dataset); err != nil {
		return "", err
	}
	if err := ValidateName("view", view); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s.%s.INFORMATION_SCHEMA.%s`", project, dataset, view), nil
}

// ColumnDDL renders "`name` TYPE, ..." for a CREATE TABLE statement
func ColumnDDL(names, types []string) (string, error) {
	if len(names) != len(types) {
		return "", fmt.Errorf("column names and types differ in length")
	}
	if len(names) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	parts := make([]string, len(names))
	for i := range names {
		quoted, err := QuoteName("column", names[i])
		if err != nil {
			return "", err
		}
		dataType := strings.ToUpper(strings.TrimSpace(types[i]))
		if !typePattern.MatchString(dataType) {
			return "", fmt.Errorf("invalid data type %q for column %s", types[i], names[i])
		}
		parts[i] = quoted + " " + dataType
	}
	return strings.Join(parts, ", "), nil
}
