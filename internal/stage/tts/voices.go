package tts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/config"
)

// Voice 是一个可用的 piper 语音模型。
type Voice struct {
	// Name 是模型文件名去掉 .onnx（用于产物命名）。
	Name       string
	ModelPath  string
	ConfigPath string
}

// voicesFor 枚举 <models>/<lang>/ 下的语音：每个 *.onnx 必须带 .onnx.json
// 同伴文件，缺同伴的模型记警告并跳过。目录缺失视为零语音（不是错误）。
// 结果按语言缓存，一次运行内目录只扫一遍。
func (s *Stage) voicesFor(lang string) ([]Voice, error) {
	if s.voiceCache == nil {
		s.voiceCache = make(map[string][]Voice)
	}
	if v, ok := s.voiceCache[lang]; ok {
		return v, nil
	}

	dir := filepath.Join(config.Abs(s.Root, s.Cfg.ModelsDir), lang)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.voiceCache[lang] = nil
			return nil, nil
		}
		return nil, err
	}

	var voices []Voice
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".onnx") {
			continue
		}
		model := filepath.Join(dir, e.Name())
		confPath := model + ".json"
		if _, err := os.Stat(confPath); err != nil {
			s.Log.Warn("模型缺少 .onnx.json 同伴文件，跳过", "lang", lang, "model", e.Name())
			continue
		}
		voices = append(voices, Voice{
			Name:       strings.TrimSuffix(e.Name(), ".onnx"),
			ModelPath:  model,
			ConfigPath: confPath,
		})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })

	s.voiceCache[lang] = voices
	return voices, nil
}
