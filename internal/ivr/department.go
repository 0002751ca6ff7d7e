package ivr

// Department is one of the three fixed routing destinations selected by IVR digit.
type Department string

const (
	DepartmentSales   Department = "sales"
	DepartmentSupport Department = "support"
	DepartmentPorting Department = "porting"
)

var digitToDepartment = map[string]Department{
	"1": DepartmentSales,
	"2": DepartmentSupport,
	"3": DepartmentPorting,
}

// DepartmentForDigit maps a recognized DTMF digit to its department.
func DepartmentForDigit(digit string) (Department, bool) {
	d, ok := digitToDepartment[digit]
	return d, ok
}

// ValidDepartment reports whether s names one of the three departments.
func ValidDepartment(s string) bool {
	switch Department(s) {
	case DepartmentSales, DepartmentSupport, DepartmentPorting:
		return true
	default:
		return false
	}
}
