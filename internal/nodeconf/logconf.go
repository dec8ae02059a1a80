package nodeconf

import (
	"fmt"
	"path/filepath"

	"github.com/dreamware/minicass/internal/cluster"
)

// SystemLogName is the rolling log file each node writes under its root.
const SystemLogName = "system.log"

// LogProperties renders the log-routing file for id: everything at INFO and
// above goes to stdout and to a size-rolled system.log in the node root.
func LogProperties(id cluster.NodeIdentity) []byte {
	return []byte(fmt.Sprintf(`log4j.rootLogger=INFO,stdout,R

log4j.appender.stdout=org.apache.log4j.ConsoleAppender
log4j.appender.stdout.layout=org.apache.log4j.PatternLayout
log4j.appender.stdout.layout.ConversionPattern=%%5p %%d{HH:mm:ss,SSS} %%m%%n

log4j.appender.R=org.apache.log4j.RollingFileAppender
log4j.appender.R.maxFileSize=20MB
log4j.appender.R.maxBackupIndex=50
log4j.appender.R.layout=org.apache.log4j.PatternLayout
log4j.appender.R.layout.ConversionPattern=%%5p [%%t] %%d{ISO8601} %%F (line %%L) %%m%%n
log4j.appender.R.File=%s

log4j.logger.org.apache.thrift.server.TNonblockingServer=ERROR
`, filepath.Join(id.RootDir, SystemLogName)))
}
