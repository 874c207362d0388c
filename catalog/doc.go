// Package catalog 提供 core.CatalogStore、core.InteractionRecorder 与 core.PreferenceStore 的实现：
//   - MemoryCatalog：内存实现，用于测试/开发
//   - SQLiteCatalog：基于 modernc.org/sqlite 的单文件实现
package catalog
