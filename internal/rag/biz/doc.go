// Package biz 实现问答服务的业务逻辑。
//
// 启动时 BuildKnowledgeBase 嵌入全部段落并封存索引；
// 每个问题由 Service.Ask 处理：嵌入问题、检索最近段落、调用 Generator 生成答案。
package biz
