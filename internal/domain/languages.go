package domain

const defaultEnv = "LANG=en_US.UTF-8"

var (
	// CLanguage compiles C99 with gcc.
	CLanguage = LanguageProfile{
		Name: "c",
		Compile: &CompileConfig{
			SrcName:        "main.c",
			ExeName:        "main",
			MaxCPUTime:     3000,
			MaxRealTime:    5000,
			MaxMemory:      128 * 1024 * 1024,
			CompileCommand: "/usr/bin/gcc -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c99 {src_path} -lm -o {exe_path}",
		},
		Run: RunConfig{
			Command:     "{exe_path}",
			SeccompRule: "c_cpp",
			Env:         []string{defaultEnv},
		},
	}

	// CPPLanguage compiles C++11 with g++.
	CPPLanguage = LanguageProfile{
		Name: "cpp",
		Compile: &CompileConfig{
			SrcName:        "main.cpp",
			ExeName:        "main",
			MaxCPUTime:     3000,
			MaxRealTime:    5000,
			MaxMemory:      128 * 1024 * 1024,
			CompileCommand: "/usr/bin/g++ -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c++11 {src_path} -lm -o {exe_path}",
		},
		Run: RunConfig{
			Command:     "{exe_path}",
			SeccompRule: "c_cpp",
			Env:         []string{defaultEnv},
		},
	}

	// JavaLanguage limits memory through the JVM heap flag, so the sandbox only checks it afterwards.
	JavaLanguage = LanguageProfile{
		Name: "java",
		Compile: &CompileConfig{
			SrcName:        "Main.java",
			ExeName:        "Main.class",
			MaxCPUTime:     3000,
			MaxRealTime:    5000,
			MaxMemory:      0,
			CompileCommand: "/usr/bin/javac {src_path} -d {exe_dir} -encoding UTF8",
		},
		Run: RunConfig{
			Command:              "/usr/bin/java -cp {exe_dir} -Xss1M -Xms16M -Xmx{max_memory}k -Djava.security.manager -Djava.awt.headless=true Main",
			SeccompRule:          "java",
			Env:                  []string{defaultEnv},
			MemoryLimitCheckOnly: true,
		},
	}

	Py2Language = LanguageProfile{
		Name: "py2",
		Compile: &CompileConfig{
			SrcName:        "solution.py",
			ExeName:        "solution.pyc",
			MaxCPUTime:     3000,
			MaxRealTime:    5000,
			MaxMemory:      128 * 1024 * 1024,
			CompileCommand: "/usr/bin/python -m py_compile {src_path}",
		},
		Run: RunConfig{
			Command:     "/usr/bin/python {exe_path}",
			SeccompRule: "general",
			Env:         []string{defaultEnv},
		},
	}

	Py3Language = LanguageProfile{
		Name: "py3",
		Compile: &CompileConfig{
			SrcName:        "solution.py",
			ExeName:        "__pycache__/solution.cpython-36.pyc",
			MaxCPUTime:     3000,
			MaxRealTime:    5000,
			MaxMemory:      128 * 1024 * 1024,
			CompileCommand: "/usr/bin/python3 -m py_compile {src_path}",
		},
		Run: RunConfig{
			Command:     "/usr/bin/python3 {exe_path}",
			SeccompRule: "general",
			Env:         []string{defaultEnv, "PYTHONIOENCODING=UTF-8"},
		},
	}

	// CSPJCompile builds a C special judge; names are expanded per spj_version.
	CSPJCompile = CompileConfig{
		SrcName:        "spj-{spj_version}.c",
		ExeName:        "spj-{spj_version}",
		MaxCPUTime:     3000,
		MaxRealTime:    5000,
		MaxMemory:      1024 * 1024 * 1024,
		CompileCommand: "/usr/bin/gcc -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c99 {src_path} -lm -o {exe_path}",
	}

	// CSPJRun runs a C special judge with the input, candidate and expected paths.
	CSPJRun = SPJConfig{
		ExeName:     "spj-{spj_version}",
		Command:     "{exe_path} {in_file_path} {user_out_file_path} {ans_file_path}",
		SeccompRule: "c_cpp",
	}
)

// Languages lists the built-in profiles by name.
var Languages = map[string]LanguageProfile{
	CLanguage.Name:    CLanguage,
	CPPLanguage.Name:  CPPLanguage,
	JavaLanguage.Name: JavaLanguage,
	Py2Language.Name:  Py2Language,
	Py3Language.Name:  Py3Language,
}
