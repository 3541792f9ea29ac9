// Package domain file: internal/core/domain/datasource.go
package domain

import "time"

// DataSourceKind 标记连接器以哪种形态暴露表数据。
// 这是一个封闭集合，查询引擎必须对每个取值做穷尽分派。
type DataSourceKind string

const (
	SourceInline     DataSourceKind = "inline"
	SourceFile       DataSourceKind = "file"
	SourceURL        DataSourceKind = "url"
	SourceStream     DataSourceKind = "stream"
	SourceConnection DataSourceKind = "connection"
)

// DataSourceDefinition 描述连接器交给查询引擎的数据来源。
// 每种 Kind 只使用对应的载荷字段，其余字段保持零值。
type DataSourceDefinition struct {
	Kind DataSourceKind `json:"kind"`

	// Inline: 常驻内存的行。
	Rows []Row `json:"rows,omitempty"`

	// File: 本地 JSON 数组或 NDJSON 文件，允许多个文件合并摄取。
	FilePaths []string `json:"filePaths,omitempty"`

	// Url: 通过 http/https/file 协议拉取的远端数据。
	URL string `json:"url,omitempty"`

	// Stream: 进程内推送流，引擎负责读到关闭为止。
	Stream <-chan Row `json:"-"`

	// Connection: 指向已登记的外部数据库连接，Query 为下发的查询语句。
	ConnectionID string `json:"connectionId,omitempty"`
	Query        string `json:"query,omitempty"`
	Args         []any  `json:"args,omitempty"`
}

// Connection 是一条已登记的外部数据库连接，
// 既可以作为 Connection 数据源被查询引擎使用，也可以作为权限目标。
type Connection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Driver    string    `json:"driver"`
	DSN       string    `json:"dsn"`
	CreatedAt time.Time `json:"createdAt"`
}
