package exporter

import (
	"fmt"
	"path"
	"strings"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
)

const defaultExtension = "pdf"

// PartitionPrefix is <companyId>/<Lastname_Firstname>/<YYYY>/<MM>/<YYYY-MM-DD>,
// always slash separated.
func PartitionPrefix(companyId string, employee models.Employee, workDate string) (string, error) {
	date, err := models.ParseWorkDate(workDate)
	if err != nil {
		return "", fmt.Errorf("partition for work date %q: %w", workDate, err)
	}
	return path.Join(
		utils.SanitizePathSegment(companyId),
		employeeDirName(employee),
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		models.FormatWorkDate(date),
	), nil
}

func employeeDirName(employee models.Employee) string {
	last := strings.TrimSpace(employee.LastName)
	first := strings.TrimSpace(employee.FirstName)
	if last == "" && first == "" {
		return "unknown"
	}
	return utils.SanitizePathSegment(last + "_" + first)
}

// DocumentName returns TB_<date>.<ext> or RS_<date>.<ext>.
func DocumentName(kind models.AttachmentKind, workDate, extension string) string {
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if extension == "" {
		extension = defaultExtension
	}
	return fmt.Sprintf("%s_%s.%s", kind, workDate, extension)
}

func AttachmentName(a models.Attachment) string {
	name := strings.TrimSpace(a.Filename)
	if name == "" {
		name = a.ID + ".dat"
	}
	return utils.SanitizePathSegment(name)
}

type namedFile struct {
	name string
	data []byte
}

func documentFiles(b Bundle) []namedFile {
	var files []namedFile
	if b.TbDocument != nil {
		files = append(files, namedFile{DocumentName(models.AttachmentKindTb, b.Workday.WorkDate, b.Extension), b.TbDocument})
	}
	if b.RsDocument != nil {
		files = append(files, namedFile{DocumentName(models.AttachmentKindRs, b.Workday.WorkDate, b.Extension), b.RsDocument})
	}
	return files
}
